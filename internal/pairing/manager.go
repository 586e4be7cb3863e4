package pairing

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/nerrad567/solar-bridge/internal/infrastructure/logging"
)

// Pairing states.
const (
	StateUnpaired = "unpaired"
	StatePaired   = "paired"
)

// Pairing state machine events.
const (
	EventPair   = "pair"
	EventUnpair = "unpair"
)

// StateListener is told about every transition between unpaired and paired.
type StateListener func(paired bool)

// Options configures a Manager.
type Options struct {
	Store Store

	// SetupCode is the code clients must present. Empty means a random one.
	SetupCode string

	// Category is advertised in the setup URI and mDNS record.
	Category uint8

	Logger *logging.Logger
}

// Manager owns the pairing state: the setup code, the persisted identity and
// the paired controllers. It drives an unpaired/paired state machine and
// notifies listeners on each transition.
//
// Manager satisfies the controller's PairingInfo.
type Manager struct {
	store     Store
	logger    *logging.Logger
	setupCode string
	category  uint8
	identity  Identity
	setupURI  string
	now       func() time.Time

	mu        sync.Mutex
	machine   *fsm.FSM
	listeners []StateListener
}

// NewManager loads or creates the identity, checks the setup code and sets
// the initial state from the stored pairings.
func NewManager(ctx context.Context, opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("pairing: store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	category := opts.Category
	if category == 0 {
		category = CategoryOutlet
	}

	code := opts.SetupCode
	if code == "" {
		var err error
		if code, err = GenerateSetupCode(); err != nil {
			return nil, err
		}
	} else if err := ValidateSetupCode(code); err != nil {
		return nil, err
	}

	identity, err := opts.Store.LoadOrCreateIdentity(ctx)
	if err != nil {
		return nil, err
	}
	uri, err := SetupURI(code, category, identity.SetupID)
	if err != nil {
		return nil, err
	}

	pairings, err := opts.Store.Pairings(ctx)
	if err != nil {
		return nil, err
	}
	initial := StateUnpaired
	if len(pairings) > 0 {
		initial = StatePaired
	}

	m := &Manager{
		store:     opts.Store,
		logger:    logger.With("component", "pairing"),
		setupCode: code,
		category:  category,
		identity:  identity,
		setupURI:  uri,
		now:       time.Now,
	}
	m.machine = fsm.NewFSM(initial,
		fsm.Events{
			{Name: EventPair, Src: []string{StateUnpaired}, Dst: StatePaired},
			{Name: EventUnpair, Src: []string{StatePaired}, Dst: StateUnpaired},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.logger.Info("pairing state changed", "from", e.Src, "to", e.Dst)
			},
		},
	)
	return m, nil
}

// OnStateChange registers l for future transitions.
func (m *Manager) OnStateChange(l StateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// State returns "paired" or "unpaired".
func (m *Manager) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machine.Current()
}

// Paired reports whether at least one controller is paired.
func (m *Manager) Paired() bool { return m.State() == StatePaired }

// SetupCode returns the code clients must present.
func (m *Manager) SetupCode() string { return m.setupCode }

// SetupURI returns the X-HM:// setup payload.
func (m *Manager) SetupURI() string { return m.setupURI }

// Identity returns the persisted accessory identity.
func (m *Manager) Identity() Identity { return m.identity }

// Category returns the accessory category.
func (m *Manager) Category() uint8 { return m.category }

// Pairings lists the paired controllers.
func (m *Manager) Pairings(ctx context.Context) ([]Pairing, error) {
	return m.store.Pairings(ctx)
}

// Pair adds a controller after checking the setup code. The first pairing
// moves the machine to paired.
func (m *Manager) Pair(ctx context.Context, setupCode string, p Pairing) error {
	if subtle.ConstantTimeCompare([]byte(setupCode), []byte(m.setupCode)) != 1 {
		return ErrSetupCodeMismatch
	}

	m.mu.Lock()
	// The first controller to pair is the admin.
	if m.machine.Current() == StateUnpaired {
		p.Admin = true
	}
	if err := m.store.SavePairing(ctx, p); err != nil {
		m.mu.Unlock()
		return err
	}
	m.logger.Info("controller paired", "controller_id", p.ControllerID, "admin", p.Admin)
	notify, err := m.transition(ctx, EventPair)
	m.mu.Unlock()

	notify()
	return err
}

// Unpair removes a controller. Removing the last one moves the machine to
// unpaired.
func (m *Manager) Unpair(ctx context.Context, controllerID string) error {
	m.mu.Lock()
	if err := m.store.DeletePairing(ctx, controllerID); err != nil {
		m.mu.Unlock()
		return err
	}
	m.logger.Info("controller removed", "controller_id", controllerID)

	remaining, err := m.store.Pairings(ctx)
	if err != nil || len(remaining) > 0 {
		m.mu.Unlock()
		return err
	}
	notify, err := m.transition(ctx, EventUnpair)
	m.mu.Unlock()

	notify()
	return err
}

// transition runs event and returns a function that tells the listeners
// about it. An event that does not apply to the current state (pairing a
// second controller) is not an error and notifies nobody. Callers hold m.mu
// and call notify after releasing it.
func (m *Manager) transition(ctx context.Context, event string) (notify func(), err error) {
	noop := func() {}

	err = m.machine.Event(ctx, event)
	var invalid fsm.InvalidEventError
	if errors.As(err, &invalid) {
		return noop, nil
	}
	if err != nil {
		return noop, fmt.Errorf("pairing transition %s: %w", event, err)
	}

	paired := m.machine.Current() == StatePaired
	listeners := append([]StateListener(nil), m.listeners...)
	return func() {
		for _, l := range listeners {
			l(paired)
		}
	}, nil
}
