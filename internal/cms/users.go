// ABOUTME: Account handlers: login, logout and signup
// ABOUTME: None are gated; login and signup are how a session becomes signed in

package cms

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/folio/internal/credentials"
	"github.com/2389/folio/internal/session"
)

// CredentialStore is the subset of credentials.Store the handlers use.
type CredentialStore interface {
	Exists(ctx context.Context, username string) (bool, error)
	Verify(ctx context.Context, username, password string) (bool, error)
	CreateAccount(ctx context.Context, username, password string) error
}

// Messages shown by the account handlers
const (
	msgInvalidCredentials = "Invalid Credentials."
	msgUsernameTaken      = "Sorry, that name has already been taken"
	msgPasswordMismatch   = "Passwords gotta match, buddy."
	msgUsernameRequired   = "A username is required."
	msgSignedOut          = "You have been signed out. Bye!"
	msgAccountCreated     = "Account created. Welcome new user!"
)

var msgPasswordTooLong = fmt.Sprintf("Passwords can be at most %d bytes.", credentials.MaxPasswordBytes)

// LoginForm shows the sign-in form.
func (s *Service) LoginForm(ctx context.Context, sess *session.Session) (*Result, error) {
	return page(PageLogin, UserFormData{}), nil
}

// Login signs the session in when the credentials verify. A credential store
// that cannot be read is an error, not a failed login.
func (s *Service) Login(ctx context.Context, sess *session.Session, username, password string) (*Result, error) {
	ok, err := s.creds.Verify(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("verifying credentials: %w", err)
	}
	if !ok {
		s.recordLogin("failure")
		s.logger.Info("login failed", "username", username)
		sess.SetError(msgInvalidCredentials)
		return invalid(PageLogin, UserFormData{Username: username}, msgInvalidCredentials, ErrInvalidCredentials), nil
	}

	s.recordLogin("success")
	s.logger.Info("login successful", "username", username)

	sess.Renew()
	sess.SetCurrentUser(username)
	sess.SetSuccess(fmt.Sprintf("Welcome, %s! Hang out a while!", username))
	return redirect(ListLocation), nil
}

// Logout signs the session out.
func (s *Service) Logout(ctx context.Context, sess *session.Session) (*Result, error) {
	if user, ok := sess.CurrentUser(); ok {
		s.logger.Info("logout", "username", user)
	}
	sess.ClearCurrentUser()
	sess.SetSuccess(msgSignedOut)
	return redirect(ListLocation), nil
}

// SignupForm shows the account creation form.
func (s *Service) SignupForm(ctx context.Context, sess *session.Session) (*Result, error) {
	return page(PageSignup, UserFormData{}), nil
}

// Signup creates an account and signs the session in. The duplicate-name
// check runs before the password confirmation check.
func (s *Service) Signup(ctx context.Context, sess *session.Session, username, pass1, pass2 string) (*Result, error) {
	form := UserFormData{Username: username}

	if username == "" {
		s.recordSignup("invalid")
		sess.SetError(msgUsernameRequired)
		return invalid(PageSignup, form, msgUsernameRequired, nil), nil
	}

	exists, err := s.creds.Exists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("checking username: %w", err)
	}
	if exists {
		s.recordSignup("duplicate")
		sess.SetError(msgUsernameTaken)
		return invalid(PageSignup, form, msgUsernameTaken, credentials.ErrDuplicateUsername), nil
	}

	if pass1 != pass2 {
		s.recordSignup("mismatch")
		sess.SetError(msgPasswordMismatch)
		return invalid(PageSignup, form, msgPasswordMismatch, ErrPasswordMismatch), nil
	}

	err = s.creds.CreateAccount(ctx, username, pass1)
	if errors.Is(err, credentials.ErrPasswordTooLong) {
		s.recordSignup("invalid")
		sess.SetError(msgPasswordTooLong)
		return invalid(PageSignup, form, msgPasswordTooLong, err), nil
	}
	if errors.Is(err, credentials.ErrDuplicateUsername) {
		// Lost a race with a concurrent signup for the same name
		s.recordSignup("duplicate")
		sess.SetError(msgUsernameTaken)
		return invalid(PageSignup, form, msgUsernameTaken, err), nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}

	s.recordSignup("ok")
	s.logger.Info("account created", "username", username)

	sess.Renew()
	sess.SetCurrentUser(username)
	sess.SetSuccess(msgAccountCreated)
	return redirect(ListLocation), nil
}
