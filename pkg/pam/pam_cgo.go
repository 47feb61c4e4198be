//go:build cgo

package pam

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pam "github.com/msteinert/pam/v2"
)

func init() {
	systemSessionOpener = hostOpener{}
}

// hostOpener starts transactions against the host PAM stack.
type hostOpener struct{}

var _ SessionOpener = hostOpener{}

func (hostOpener) Open(ctx context.Context, service, username string) (Session, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	sess := &hostSession{}
	txn, err := pam.StartFunc(service, username, sess.converse)
	if err != nil {
		return nil, err
	}
	sess.txn = txn
	return sess, nil
}

// hostSession holds the password for the duration of one Authenticate call
// so the conversation callback can answer the stack's prompt.
type hostSession struct {
	txn      *pam.Transaction
	mu       sync.Mutex
	password string
}

func (s *hostSession) converse(style pam.Style, msg string) (string, error) {
	switch style {
	case pam.PromptEchoOff:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.password == "" {
			return "", errors.New("pam: no password available for prompt")
		}
		return s.password, nil
	case pam.PromptEchoOn:
		return "", fmt.Errorf("pam: unexpected echo-on prompt: %s", msg)
	case pam.ErrorMsg, pam.TextInfo:
		return "", nil
	default:
		return "", fmt.Errorf("pam: unsupported conversation style %d", style)
	}
}

func (s *hostSession) Authenticate(ctx context.Context, password string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.password = password
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.password = ""
		s.mu.Unlock()
	}()

	if err := s.txn.Authenticate(pam.Silent); err != nil {
		return err
	}
	return s.txn.AcctMgmt(pam.Silent)
}

func (s *hostSession) Close() error {
	return s.txn.End()
}
