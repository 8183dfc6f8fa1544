package config

type NavigationConfig interface {
	GetLoginRoute() string
	GetRegisterRoute() string
	GetLandingRoute() string
}

type Navigation struct{}

var _ NavigationConfig = Navigation{}

func (Navigation) GetLoginRoute() string {
	return GetEnv("LOGIN_ROUTE", "/login")
}

func (Navigation) GetRegisterRoute() string {
	return GetEnv("REGISTER_ROUTE", "/register")
}

func (Navigation) GetLandingRoute() string {
	return GetEnv("LANDING_ROUTE", "/dashboard")
}
