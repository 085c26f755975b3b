package appdata

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"os"

	"github.com/facebookincubator/go-belt/tool/logger"
)

const OAuthStateFile = ".oauth_state"

var ErrOAuthStateMismatch = errors.New("the OAuth state does not match the saved one")

// SaveOAuthState remembers the state sent in the authorization URL until
// the redirect comes back.
func (d *Dir) SaveOAuthState(ctx context.Context, state string) error {
	logger.Debugf(ctx, "SaveOAuthState")
	if state == "" {
		return fmt.Errorf("the state is empty")
	}
	return d.WriteFile(OAuthStateFile, []byte(state))
}

// VerifyOAuthState compares the state received on the redirect with the
// saved one. The saved state is removed in any case, so it can be used
// only once.
func (d *Dir) VerifyOAuthState(ctx context.Context, state string) (_err error) {
	logger.Debugf(ctx, "VerifyOAuthState")
	defer func() { logger.Debugf(ctx, "/VerifyOAuthState: %v", _err) }()

	saved, err := d.ReadFile(OAuthStateFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no OAuth flow is in progress: %w", ErrOAuthStateMismatch)
		}
		return err
	}
	if err := d.Remove(OAuthStateFile); err != nil {
		logger.Errorf(ctx, "unable to remove the OAuth state: %v", err)
	}

	saved = bytes.TrimSpace(saved)
	if len(saved) == 0 || subtle.ConstantTimeCompare(saved, []byte(state)) != 1 {
		return ErrOAuthStateMismatch
	}
	return nil
}
