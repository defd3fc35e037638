package profile

import (
	"fmt"
	"os"
	"strings"
)

type ProfileType string

var Current = DEV // dev profile as default

const (
	DEV  ProfileType = "DEV"
	TEST ProfileType = "TEST"
	PROD ProfileType = "PROD"
)

// Parse maps a profile name to its type, unknown names fall back to DEV.
func Parse(name string) ProfileType {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TEST":
		return TEST
	case "PROD":
		return PROD
	default:
		return DEV
	}
}

// InitProfile reads the profile from the PROFILE environment variable.
func InitProfile() {
	Current = Parse(os.Getenv("PROFILE"))
	fmt.Printf("Current profile: %s\n", Current)
}
