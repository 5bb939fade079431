package roguesd

import (
	"context"
	"errors"
	"fmt"

	"github.com/moffa90/go-roguesd/protocol"
)

// Sync performs the connection handshake:
//  1. Flush input, send ESC and wait for the module to answer
//  2. Query the version and detect the module type
//  3. Pick the dialect and normalize settings (write time-out on legacy
//     modules, listing style and prompt on current ones)
//  4. Close every handle
//
// Sync may be called again at any time to recover from a desync. Nothing
// answering the ESC byte yields ErrModuleAbsent; with WithBlockingSync the
// wait is bounded only by ctx.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	if err := client.Sync(ctx); err != nil {
//	    log.Fatal(err)
//	}
func (c *Client) Sync(ctx context.Context) error {
	c.state = StateDisconnected

	// Phase 1: sync
	if err := c.port.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := c.send("sync", protocol.BuildSyncCmd()); err != nil {
		return err
	}
	if c.config.BlockingSync {
		if _, err := c.rd.Next(ctx); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
	} else {
		_, ok, err := c.rd.ReadTimeout(ctx, c.config.SyncTimeout)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		if !ok {
			c.logError("module did not answer", "timeout", c.config.SyncTimeout.String())
			return ErrModuleAbsent
		}
	}
	c.state = StateSynced

	// Phase 2: version and module type
	if err := c.send("version", protocol.BuildVersionCmd()); err != nil {
		return err
	}
	v, err := c.rd.ReadVersion(ctx)
	if err != nil {
		if errors.Is(err, protocol.ErrVersionFormat) {
			return &VersionParseError{Err: err}
		}
		return fmt.Errorf("version: %w", err)
	}
	c.version = v
	c.prefix = v.Module.Prefix()
	c.state = StateVersionKnown

	// Phase 3: dialect and settings
	c.dialect = protocol.ResolveDialect(v.Module, v.Code())
	if c.dialect == protocol.Legacy {
		// 10 ms write time-out, so line writes can be ended by idling
		if err := c.changeSetting(ctx, protocol.SettingWriteTimeout, 1); err != nil {
			if !protocol.IsModuleError(err) {
				return err
			}
			c.logError("write time-out setting rejected", "error", err)
		}
	} else {
		if err := c.normalizeListingStyle(ctx); err != nil {
			return err
		}
		if err := c.negotiatePrompt(ctx); err != nil {
			return err
		}
	}
	c.state = StateCapabilityResolved

	// Phase 4: close files
	if err := c.closeAll(ctx); err != nil {
		return err
	}
	c.state = StateReady

	c.logInfo("module ready",
		"module", v.Module.String(),
		"firmware", v.String(),
		"dialect", c.dialect.String(),
		"prompt", string(c.prompt),
	)
	return nil
}

// normalizeListingStyle selects the "D name" / "size name" listing format.
func (c *Client) normalizeListingStyle(ctx context.Context) error {
	style, err := c.setting(ctx, protocol.SettingListingStyle)
	if err != nil && !protocol.IsModuleError(err) {
		return err
	}
	if err == nil && style == 0 {
		return nil
	}
	if err := c.changeSetting(ctx, protocol.SettingListingStyle, 0); err != nil {
		if !protocol.IsModuleError(err) {
			return err
		}
		c.logError("listing style setting rejected", "error", err)
	}
	return nil
}

// negotiatePrompt reads the prompt setting. A module that refuses the
// query keeps the current prompt.
func (c *Client) negotiatePrompt(ctx context.Context) error {
	p, err := c.setting(ctx, protocol.SettingPrompt)
	if err != nil {
		if !protocol.IsModuleError(err) {
			return err
		}
		c.logError("prompt query rejected", "error", err)
		return nil
	}
	if p > 0 && p <= 0xFF {
		c.prompt = byte(p)
	}
	return nil
}
