package navigation

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteRoot = "/"

	// Public routes
	RouteLogin    = "/login"
	RouteRegister = "/register"

	// Application routes
	RouteDashboard = "/dashboard"
	RoutePosts     = "/posts"
	RouteComments  = "/comments"
	RouteUsers     = "/users"
	RouteSettings  = "/settings"
	RouteReports   = "/reports"
	RouteCrawData  = "/craw-data"
	RoutePostFB    = "/post-fb"
)

// AppRoutes lists the top level application pages, in menu order.
var AppRoutes = []string{
	RouteDashboard,
	RoutePosts,
	RouteComments,
	RouteUsers,
	RouteCrawData,
	RoutePostFB,
	RouteReports,
	RouteSettings,
}
