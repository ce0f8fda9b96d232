// Package ui renders the four screens (sign-in, sign-up, contact list,
// chat) on a terminal and drives navigation between them. Everything
// here is glue: the screens call into session, contacts and chat and
// draw whatever comes back.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/alonc7/chatapp-go/internal/docstore"
	"github.com/alonc7/chatapp-go/internal/push"
	"github.com/alonc7/chatapp-go/internal/session"
)

type route int

const (
	routeSignIn route = iota
	routeHome
	routeUsers
	routeQuit
)

type App struct {
	Store    docstore.Store
	Sessions *session.Manager
	Tokens   push.TokenProvider
	Log      *zap.Logger
	In       io.Reader
	Out      io.Writer

	lines chan string
}

// Run drives the screen state machine until quit or input EOF.
func (a *App) Run(ctx context.Context) error {
	a.lines = make(chan string)
	go a.readLines(ctx)

	r := routeSignIn
	if a.Sessions.SignedIn() {
		r = routeHome
	}
	for r != routeQuit {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch r {
		case routeSignIn:
			r = a.signInScreen(ctx)
		case routeHome:
			r = a.homeScreen(ctx)
		case routeUsers:
			r = a.usersScreen(ctx)
		}
	}
	fmt.Fprintln(a.Out, "bye")
	return nil
}

func (a *App) readLines(ctx context.Context) {
	sc := bufio.NewScanner(a.In)
	for sc.Scan() {
		select {
		case a.lines <- strings.TrimSpace(sc.Text()):
		case <-ctx.Done():
			return
		}
	}
	close(a.lines)
}

// prompt reads one input line; ok is false on EOF or cancellation.
func (a *App) prompt(ctx context.Context, label string) (string, bool) {
	fmt.Fprint(a.Out, label)
	select {
	case line, open := <-a.lines:
		return line, open
	case <-ctx.Done():
		return "", false
	}
}

// toast is the terminal stand-in for a short user notification.
func (a *App) toast(msg string) {
	fmt.Fprintln(a.Out, "! "+msg)
}

func (a *App) loading(on bool) {
	if on {
		fmt.Fprintln(a.Out, "...")
	}
}
