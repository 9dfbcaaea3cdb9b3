package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// OAuthProvider holds the credentials and endpoints for one federated
// login provider. A provider with an empty ClientID or ClientSecret is
// treated as unconfigured and rejected before any network call.
type OAuthProvider struct {
	Name         string
	ClientID     string
	ClientSecret string
	TokenURL     string
	UserInfoURL  string
	RedirectURI  string
}

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable; required variables are enforced by must()
// and missing values abort startup.
type Config struct {
	Env  string // application environment (dev/test/prod)
	Port string // HTTP port to listen on

	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	JWTSecret      string // key for signing access tokens
	JWTIssuer      string
	JWTAudience    string
	AccessTTLMin   int // access token time-to-live in minutes
	RefreshTTLDays int // refresh token time-to-live in days

	ResetCodeTTL      time.Duration // lifetime of the 6-digit reset code
	ChangeTokenSecret string        // key for the password-change token
	ChangeTokenTTL    time.Duration // lifetime of the password-change token

	// The email-change flow signs two tokens with independent keys and
	// independent lifetimes: a "change" token mailed to the new address
	// and a "resend" token held by the client.
	ChangeEmailSecret string
	ChangeEmailTTLMin int
	ResendEmailSecret string
	ResendEmailTTLMin int

	DefaultGroupID   string // group new trainees/trainers are enrolled into
	CompanyName      string // display name used in outbound mail
	FrontendLoginURL string // where OAuth failures are redirected

	OAuth map[string]OAuthProvider // keyed by lowercased provider name
}

// Load reads configuration values from environment variables and
// returns a Config. Required variables cause a fatal log when missing.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		JWTIssuer:      must("JWT_ISSUER"),
		JWTAudience:    must("JWT_AUDIENCE"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),

		ResetCodeTTL:      envDur("PASSWORD_RESET_CODE_TTL", 5*time.Minute),
		ChangeTokenSecret: must("PASSWORD_CHANGE_TOKEN_SECRET"),
		ChangeTokenTTL:    envDur("PASSWORD_CHANGE_TOKEN_TTL", 5*time.Minute),

		ChangeEmailSecret: must("CHANGE_EMAIL_TOKEN_SECRET"),
		ChangeEmailTTLMin: envInt("CHANGE_EMAIL_TOKEN_TTL_MIN", 30),
		ResendEmailSecret: must("RESEND_EMAIL_TOKEN_SECRET"),
		ResendEmailTTLMin: envInt("RESEND_EMAIL_TOKEN_TTL_MIN", 60),

		DefaultGroupID:   must("DEFAULT_GROUP_ID"),
		CompanyName:      envStr("COMPANY_NAME", "Traincore"),
		FrontendLoginURL: envStr("FRONTEND_LOGIN_URL", "/login"),

		OAuth: loadOAuthProviders("GOOGLE", "MICROSOFT"),
	}
}

// loadOAuthProviders reads OAUTH_<NAME>_* variables for each named
// provider. Providers without a client id are still registered so the
// bridge can report a configuration error instead of an unknown one.
func loadOAuthProviders(names ...string) map[string]OAuthProvider {
	out := make(map[string]OAuthProvider, len(names))
	for _, n := range names {
		prefix := "OAUTH_" + n + "_"
		out[strings.ToLower(n)] = OAuthProvider{
			Name:         strings.ToLower(n),
			ClientID:     os.Getenv(prefix + "CLIENT_ID"),
			ClientSecret: os.Getenv(prefix + "CLIENT_SECRET"),
			TokenURL:     os.Getenv(prefix + "TOKEN_URL"),
			UserInfoURL:  os.Getenv(prefix + "USERINFO_URL"),
			RedirectURI:  os.Getenv(prefix + "REDIRECT_URI"),
		}
	}
	return out
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application exits with a fatal log.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the value into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
