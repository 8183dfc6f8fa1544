package credstore

// Durable keys. They match the names the browser front end used so that state it
// left behind stays readable.
const (
	TokenKey  = "accessToken"
	UserKey   = "user"
	cookieKey = "cookies"
)

// KV is a synchronous string key/value store. Set and Delete return only after the
// value is durable for the backend in question.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}
