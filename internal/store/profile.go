package store

import (
	"context"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// AccountRemote reads and writes the user's profile.
type AccountRemote interface {
	Account(ctx context.Context) (core.Account, error)
	UpdateAccount(ctx context.Context, u core.AccountUpdate) error
}

// Profile is the account variant of Store: one document instead of a
// collection, with the same re-read after save.
type Profile struct {
	remote AccountRemote
	logger *log.Logger
	opts   options

	op sync.Mutex

	mu      sync.RWMutex
	account core.Account
	loaded  bool
	loading int
	err     error
	gen     uint64
}

func NewProfile(remote AccountRemote, logger *log.Logger, opts ...Option) *Profile {
	if logger == nil {
		logger = log.Discard()
	}
	return &Profile{
		remote: remote,
		logger: logger.WithComponent(log.ComponentStore).With(log.FieldKind, "account"),
		opts:   buildOptions(opts),
	}
}

// Account returns the last loaded profile.
func (p *Profile) Account() (core.Account, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.account, p.loaded
}

func (p *Profile) Loading() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loading > 0
}

func (p *Profile) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

func (p *Profile) Message() string {
	return p.opts.describe(p.Err())
}

// Reset forgets the loaded account; results of calls in flight are dropped.
func (p *Profile) Reset() {
	p.mu.Lock()
	p.gen++
	p.account = core.Account{}
	p.loaded = false
	p.err = nil
	p.mu.Unlock()
}

func (p *Profile) generation() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gen
}

func (p *Profile) Load(ctx context.Context) error {
	p.op.Lock()
	defer p.op.Unlock()
	done := p.begin()
	defer done()
	return p.load(ctx)
}

// Save sends u and re-loads the profile. A blank password leaves the
// current one unchanged.
func (p *Profile) Save(ctx context.Context, u core.AccountUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	p.op.Lock()
	defer p.op.Unlock()
	done := p.begin()
	defer done()
	gen := p.generation()

	err := p.remote.UpdateAccount(ctx, u)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		p.fail(ctx, gen, log.OpUpdate, err)
		return err
	}
	p.logger.InfoContext(ctx, "Profile updated",
		log.FieldOperation, log.OpAccount,
		"password_changed", u.ChangesPassword())
	return refreshed(p.load(ctx))
}

func (p *Profile) load(ctx context.Context) error {
	gen := p.generation()
	acc, err := p.remote.Account(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		p.fail(ctx, gen, log.OpAccount, err)
		return err
	}
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return nil
	}
	p.account = acc
	p.loaded = true
	p.err = nil
	p.mu.Unlock()
	return nil
}

func (p *Profile) begin() func() {
	p.mu.Lock()
	p.loading++
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.loading--
		p.mu.Unlock()
	}
}

func (p *Profile) fail(ctx context.Context, gen uint64, op string, err error) {
	p.mu.Lock()
	if p.gen == gen {
		p.err = err
	}
	p.mu.Unlock()
	p.logger.WarnContext(ctx, "Profile operation failed",
		log.FieldOperation, op,
		log.FieldError, err.Error())
}
