package cli

import (
	"context"
	"fmt"
	"log"
	"os"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for profile fields and creates an account. On success the
// session is live and the live feed is connected.
func (a *App) Register(ctx context.Context) error {
	fullName, err := getSimpleText(a.reader, "Enter full name", os.Stdout)
	if err != nil {
		return err
	}

	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	if _, err := a.api.Register(ctx, fullName, email, string(password), ""); err != nil {
		log.Printf("Registration unsuccessful: %s", err.Error())
		return err
	}

	fmt.Println("Success!")
	return a.connect(ctx)
}

// Login prompts for credentials and authenticates. On success the live feed
// is connected; presence data is only shown once that dial succeeds.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	if _, err := a.api.Login(ctx, email, string(password)); err != nil {
		log.Printf("Login unsuccessful: %s", err.Error())
		return err
	}

	log.Printf("Login successful")
	return a.connect(ctx)
}

func (a *App) connect(ctx context.Context) error {
	if err := a.startFeed(ctx); err != nil {
		log.Printf("Live feed unavailable: %s", err.Error())
		return err
	}
	return nil
}

// Logout closes the live feed and discards local credentials and state. The
// server keeps no access-token state to invalidate.
func (a *App) Logout(ctx context.Context) error {
	a.stopFeed()
	a.state.Reset()
	a.api.Logout()
	fmt.Println("Logged out")
	return nil
}
