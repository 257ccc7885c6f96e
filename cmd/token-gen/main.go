// token-gen mints a signed bearer token for local development and testing.
// The deployed identity provider issues real tokens; this tool only needs the
// shared API_SECRET.
//
// Usage:
//
//	API_SECRET=... go run ./cmd/token-gen -actor-id u-1 -actor-name "Dev User" -role supervisor
package main

import (
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/mfgops_backend/utils"
)

func main() {
	actorId := flag.String("actor-id", "", "Actor id embedded in the token (required).")
	actorName := flag.String("actor-name", "", "Display name embedded in the token.")
	role := flag.String("role", "operator", "Role claim (operator or supervisor).")
	flag.Parse()

	if *actorId == "" {
		fmt.Fprintln(os.Stderr, "-actor-id is required")
		flag.Usage()
		os.Exit(2)
	}

	token, err := utils.JwtGenerate(*actorId, *actorName, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
