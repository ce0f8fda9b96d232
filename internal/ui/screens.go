package ui

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/alonc7/chatapp-go/internal/contacts"
	"github.com/alonc7/chatapp-go/internal/model"
	"github.com/alonc7/chatapp-go/internal/session"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func (a *App) signInScreen(ctx context.Context) route {
	fmt.Fprintln(a.Out, "== sign in == (type 'new' to create an account)")
	for {
		email, ok := a.prompt(ctx, "email: ")
		if !ok {
			return routeQuit
		}
		if email == "new" {
			return a.signUpScreen(ctx)
		}
		if email == "" {
			a.toast("Enter Email")
			continue
		}
		if !emailRe.MatchString(email) {
			a.toast("Enter valid email")
			continue
		}
		password, ok := a.prompt(ctx, "password: ")
		if !ok {
			return routeQuit
		}
		if password == "" {
			a.toast("Enter valid password")
			continue
		}

		a.loading(true)
		_, err := a.Sessions.SignIn(ctx, email, password)
		a.loading(false)
		if err != nil {
			a.toast("Unable to sign in")
			if !errors.Is(err, session.ErrInvalidCredentials) {
				a.Log.Warn("sign-in error", zap.Error(err))
			}
			continue
		}
		return routeHome
	}
}

func (a *App) signUpScreen(ctx context.Context) route {
	fmt.Fprintln(a.Out, "== create account ==")
	name, ok := a.prompt(ctx, "name: ")
	if !ok {
		return routeQuit
	}
	email, ok := a.prompt(ctx, "email: ")
	if !ok {
		return routeQuit
	}
	if name == "" || !emailRe.MatchString(email) {
		a.toast("Enter valid details")
		return routeSignIn
	}
	password, ok := a.prompt(ctx, "password: ")
	if !ok {
		return routeQuit
	}
	if password == "" {
		a.toast("Enter valid password")
		return routeSignIn
	}
	avatarPath, ok := a.prompt(ctx, "avatar image path (optional): ")
	if !ok {
		return routeQuit
	}
	image, err := session.LoadAvatar(avatarPath)
	if err != nil {
		a.toast("Unable to read image")
		return routeSignIn
	}

	a.loading(true)
	_, err = a.Sessions.SignUp(ctx, name, email, password, image)
	a.loading(false)
	if err != nil {
		if errors.Is(err, session.ErrEmailTaken) {
			a.toast("Email already registered")
		} else {
			a.toast("Unable to sign up")
			a.Log.Warn("sign-up error", zap.Error(err))
		}
		return routeSignIn
	}
	return routeHome
}

func (a *App) homeScreen(ctx context.Context) route {
	_, name, _ := a.Sessions.CurrentUser()
	fmt.Fprintf(a.Out, "== %s ==\n", name)

	// Persist the device push token on the profile, as on every visit
	// to the home screen.
	if err := a.Sessions.RegisterPushToken(ctx, a.Tokens); err != nil {
		a.toast("Unable to update token")
		a.Log.Warn("push token update failed", zap.Error(err))
	}

	for {
		choice, ok := a.prompt(ctx, "[n]ew chat, [s]ign out, [q]uit: ")
		if !ok {
			return routeQuit
		}
		switch choice {
		case "n":
			return routeUsers
		case "s":
			a.toast("Signing out...")
			if err := a.Sessions.SignOut(ctx); err != nil {
				a.toast("Unable to sign out")
				continue
			}
			return routeSignIn
		case "q":
			return routeQuit
		}
	}
}

func (a *App) usersScreen(ctx context.Context) route {
	selfID, _, _ := a.Sessions.CurrentUser()
	a.loading(true)
	users, err := contacts.List(ctx, a.Store, selfID)
	a.loading(false)
	if err != nil || len(users) == 0 {
		if err != nil {
			a.Log.Warn("contact list failed", zap.Error(err))
		}
		a.toast("No user available")
		return routeHome
	}

	for i, u := range users {
		fmt.Fprintf(a.Out, "%d. %s <%s>\n", i+1, u.Name, u.Email)
	}
	for {
		choice, ok := a.prompt(ctx, "chat with (number, or 'b' for back): ")
		if !ok {
			return routeQuit
		}
		if choice == "b" {
			return routeHome
		}
		n, err := strconv.Atoi(choice)
		if err != nil || n < 1 || n > len(users) {
			continue
		}
		return a.chatScreen(ctx, users[n-1])
	}
}

func peerName(u model.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
