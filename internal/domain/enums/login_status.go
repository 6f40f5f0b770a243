package enums

type LoginStatus string

const (
	LoginIdle       LoginStatus = "idle"
	LoginInProgress LoginStatus = "logging-in"
	LoginSuccess    LoginStatus = "success"
	LoginError      LoginStatus = "loginError"
)

func (s LoginStatus) Valid() bool {
	switch s {
	case LoginIdle, LoginInProgress, LoginSuccess, LoginError:
		return true
	default:
		return false
	}
}
