package roguesd

import (
	"context"
	"fmt"

	"github.com/moffa90/go-roguesd/protocol"
)

// ChangeSetting sets a numeric module setting. Player modules receive the
// S T form automatically.
//
// Changing protocol.SettingPrompt switches the prompt the client expects
// once the module has acknowledged the change.
func (c *Client) ChangeSetting(ctx context.Context, key byte, value int) error {
	if err := c.checkReady("change setting"); err != nil {
		return err
	}
	if err := c.changeSetting(ctx, key, value); err != nil {
		return err
	}
	if key == protocol.SettingPrompt && value > 0 && value <= 0xFF {
		c.prompt = byte(value)
	}
	return nil
}

// Setting reads a numeric module setting.
func (c *Client) Setting(ctx context.Context, key byte) (int, error) {
	if err := c.checkReady("get setting"); err != nil {
		return 0, err
	}
	return c.setting(ctx, key)
}

func (c *Client) changeSetting(ctx context.Context, key byte, value int) error {
	const op = "change setting"
	cmd, err := protocol.BuildSetSettingCmd(c.version.Module, key, value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return err
	}
	return c.status(ctx, op)
}

func (c *Client) setting(ctx context.Context, key byte) (int, error) {
	const op = "get setting"
	if err := c.send(op, protocol.BuildGetSettingCmd(c.version.Module, key)); err != nil {
		return 0, err
	}
	if err := c.peekError(ctx, op); err != nil {
		return 0, err
	}
	n, err := c.rd.ReadNumber(ctx, 10)
	if err != nil {
		return 0, c.lost(fmt.Errorf("%s: %w", op, err))
	}
	if err := c.consumePrompt(ctx, op); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Time reads the module clock. Current dialect only.
func (c *Client) Time(ctx context.Context) (protocol.Clock, error) {
	const op = "get time"
	if err := c.checkReady(op); err != nil {
		return protocol.Clock{}, err
	}
	if err := c.requireCurrent(op); err != nil {
		return protocol.Clock{}, err
	}
	if err := c.send(op, protocol.BuildGetTimeCmd()); err != nil {
		return protocol.Clock{}, err
	}
	if err := c.peekError(ctx, op); err != nil {
		return protocol.Clock{}, err
	}
	clock, err := c.rd.ReadClock(ctx)
	if err != nil {
		return protocol.Clock{}, c.lost(fmt.Errorf("%s: %w", op, err))
	}
	return clock, nil
}

// SetTime sets the module clock. Current dialect only. The weekday is
// computed by the module.
func (c *Client) SetTime(ctx context.Context, clock protocol.Clock) error {
	const op = "set time"
	if err := c.checkReady(op); err != nil {
		return err
	}
	if err := c.requireCurrent(op); err != nil {
		return err
	}
	cmd, err := protocol.BuildSetTimeCmd(clock)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(op, cmd); err != nil {
		return err
	}
	if err := c.peekError(ctx, op); err != nil {
		return err
	}
	// some firmware echoes the new time before the prompt
	if err := c.rd.DiscardThrough(ctx, c.prompt); err != nil {
		return c.lost(fmt.Errorf("%s: %w", op, err))
	}
	return nil
}
