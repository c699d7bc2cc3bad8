package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	sessionx "github.com/bionicotaku/fraudguard-sessionx"
)

func main() {
	configPath := flag.String("config", os.Getenv("SESSIONX_CONFIG"), "Optional YAML config (env SESSIONX_CONFIG)")
	token := flag.String("token", os.Getenv("SESSIONX_TOKEN"), "Token to inspect (env SESSIONX_TOKEN)")
	flag.Parse()

	if *token == "" && flag.NArg() > 0 {
		*token = flag.Arg(0)
	}
	if *token == "" {
		flag.Usage()
		log.Fatal("token is required")
	}

	cfg, err := sessionx.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	policy, err := sessionx.NewPolicy(cfg.Policy)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	claims, err := sessionx.Decode(*token)
	if err != nil {
		fmt.Println("== Token could not be decoded ==")
		fmt.Printf("error        : %v\n", err)
		fmt.Printf("expires      : %s\n", policy.FormatExpiry(*token))
		fmt.Printf("force_logout : %t\n", policy.ShouldForceLogout(*token))
		os.Exit(1)
	}

	printClaims(claims)
	printStatus(policy.Evaluate(*token))
}

func printClaims(claims *sessionx.Claims) {
	fmt.Println("== Token Claims (signature not verified) ==")
	fmt.Printf("subject      : %s\n", claims.Subject)
	fmt.Printf("email        : %s\n", claims.Email)
	if claims.Issuer != "" {
		fmt.Printf("issuer       : %s\n", claims.Issuer)
	}
	if len(claims.Audience) > 0 {
		fmt.Printf("audience     : %s\n", claims.Audience)
	}
	if !claims.IssuedAt.IsZero() {
		fmt.Printf("issued_at    : %s\n", claims.IssuedAt.Format(time.RFC3339))
	}
	if claims.HasExpiry() {
		fmt.Printf("expires_at   : %s\n", claims.ExpiresAt.Format(time.RFC3339))
	}
	if claims.OrganizationID != "" {
		fmt.Printf("organization : %s\n", claims.OrganizationID)
	}
	keys := make([]string, 0, len(claims.Raw))
	for k := range claims.Raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Println("raw:")
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, claims.Raw[k])
	}
}

func printStatus(status sessionx.Status) {
	fmt.Println("== Session Policy ==")
	fmt.Printf("expires      : %s\n", status.ExpiresAt)
	fmt.Printf("expired      : %t\n", status.Expired)
	fmt.Printf("minutes_left : %d\n", status.MinutesLeft)
	fmt.Printf("warn         : %t\n", status.Warn)
	fmt.Printf("force_logout : %t\n", status.ForceLogout)
}
