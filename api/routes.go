package api

const (
	// GET /ping to check the server is up
	pingEndpoint = "/ping"
	// GET / to get the home page
	homeEndpoint = "/"
	// GET /login to get the login page
	// POST /login to authenticate with the id and password fields
	loginEndpoint = "/login"
	// GET /register to get the register page
	// POST /register to register a new user with the id and password fields
	registerEndpoint = "/register"
	// GET /* any other asset next to the pages
	staticEndpoint = "/*"
)

const (
	homePage     = "index.html"
	loginPage    = "login.html"
	registerPage = "register.html"
)
