// Command gen-token prints an HS256 id token accepted by the API when it runs
// with LOCAL_AUTH_MODE=hs256.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
)

type tokenOptions struct {
	secret   string
	audience string
	issuer   string
	name     string
	email    string
	ttl      time.Duration
}

func signToken(opts tokenOptions, userID string, now time.Time) (string, error) {
	if opts.secret == "" {
		return "", errors.New("LOCAL_AUTH_SHARED_SECRET must be set")
	}
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(opts.ttl).Unix(),
	}
	if opts.audience != "" {
		claims["aud"] = opts.audience
	}
	if opts.issuer != "" {
		claims["iss"] = opts.issuer
	}
	if opts.name != "" {
		claims["name"] = opts.name
	}
	if opts.email != "" {
		claims["email"] = opts.email
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(opts.secret))
}

func main() {
	opts := tokenOptions{
		secret:   os.Getenv("LOCAL_AUTH_SHARED_SECRET"),
		audience: os.Getenv("AUTH_AUDIENCE"),
		issuer:   os.Getenv("AUTH_ISSUER"),
	}
	var (
		count  = flag.Int("count", 1, "number of tokens to generate")
		prefix = flag.String("prefix", "dev-user", "user id, or prefix when count > 1")
		output = flag.String("output", "", "file to write the tokens to as a JSON array")
	)
	flag.StringVar(&opts.name, "name", "", "display name claim")
	flag.StringVar(&opts.email, "email", "", "email claim")
	flag.DurationVar(&opts.ttl, "ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *count < 1 {
		log.Fatal("count must be at least 1")
	}

	now := time.Now()
	tokens := make([]string, *count)
	for i := range tokens {
		userID := *prefix
		if *count > 1 {
			userID = fmt.Sprintf("%s-%d", *prefix, i+1)
		}
		tok, err := signToken(opts, userID, now)
		if err != nil {
			log.Fatalf("sign token: %v", err)
		}
		tokens[i] = tok
	}

	if *output != "" {
		data, err := sonic.Marshal(tokens)
		if err != nil {
			log.Fatalf("encode tokens: %v", err)
		}
		if err := os.WriteFile(*output, append(data, '\n'), 0o600); err != nil {
			log.Fatalf("write tokens: %v", err)
		}
	}
	fmt.Print(tokens[0])
}
