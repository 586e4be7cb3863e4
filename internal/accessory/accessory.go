package accessory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Info is the accessory's identity.
type Info struct {
	Name         string
	Manufacturer string
	Model        string
}

// Change describes one characteristic value change.
type Change struct {
	ServiceID        string
	CharacteristicID string
	Old              any
	New              any
	At               time.Time
}

// Listener receives changes. Listeners run on the updating goroutine and must
// not block; hand work off to a channel or goroutine instead.
type Listener func(Change)

// WriteHandler receives client write requests after the value has been
// converted to the characteristic's format.
type WriteHandler func(ctx context.Context, characteristicID string, value any)

// IdentifyHandler is called when a client asks the accessory to identify itself.
type IdentifyHandler func(name string)

// Accessory is the state tree: a fixed set of services and characteristics.
// Values are written only through the Update methods and read concurrently by
// anything holding the accessory.
type Accessory struct {
	info     Info
	profile  Profile
	services []*Service
	byID     map[string]*Characteristic

	mu         sync.RWMutex
	listeners  map[uint64]Listener
	nextID     uint64
	onWrite    WriteHandler
	onIdentify IdentifyHandler

	now func() time.Time
}

// New builds the accessory tree and fills in the static information values.
func New(info Info, profile Profile) *Accessory {
	a := &Accessory{
		info:      info,
		profile:   profile,
		byID:      make(map[string]*Characteristic),
		listeners: make(map[uint64]Listener),
		now:       time.Now,
	}

	a.addService(ServiceInformation, StandardUUID(typeAccessoryInformation), informationDefinitions())
	a.addService(ServiceInverter, StandardUUID(typeOutlet), inverterDefinitions())
	a.addService(ServiceBattery, StandardUUID(typeBatteryService), batteryDefinitions())
	a.addService(ServiceRating, CustomUUID(600), ratingDefinitions())
	a.addService(ServiceFirmware, CustomUUID(200), firmwareDefinitions())

	// Static values are set before anyone can subscribe, so no events fire.
	a.set(IDName, info.Name)
	a.set(IDManufacturer, info.Manufacturer)
	a.set(IDModel, info.Model)
	a.set(IDBatteryName, "Solar Battery")

	return a
}

func (a *Accessory) addService(id string, typ uuid.UUID, defs []Definition) {
	svc := &Service{ID: id, Type: typ}
	for _, def := range defs {
		c := newCharacteristic(def)
		c.service = svc
		svc.Characteristics = append(svc.Characteristics, c)
		a.byID[def.ID] = c
	}
	a.services = append(a.services, svc)
}

// Info returns the accessory identity.
func (a *Accessory) Info() Info { return a.info }

// Profile returns the derivation profile in use.
func (a *Accessory) Profile() Profile { return a.profile }

// Services returns the services in presentation order.
func (a *Accessory) Services() []*Service { return a.services }

// Characteristic looks a characteristic up by ID.
func (a *Accessory) Characteristic(id string) (*Characteristic, bool) {
	c, ok := a.byID[id]
	return c, ok
}

// Characteristics returns every characteristic in presentation order.
func (a *Accessory) Characteristics() []*Characteristic {
	var out []*Characteristic
	for _, svc := range a.services {
		out = append(out, svc.Characteristics...)
	}
	return out
}

// Value returns the current value of a characteristic, or nil if unknown.
func (a *Accessory) Value(id string) any {
	if c, ok := a.byID[id]; ok {
		return c.Value()
	}
	return nil
}

// Subscribe registers fn for change notifications. The returned function
// removes the subscription.
func (a *Accessory) Subscribe(fn Listener) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.listeners, id)
			a.mu.Unlock()
		})
	}
}

// OnWrite installs the handler for client writes. There is one handler; a
// second call replaces the first.
func (a *Accessory) OnWrite(h WriteHandler) {
	a.mu.Lock()
	a.onWrite = h
	a.mu.Unlock()
}

// OnIdentify installs the handler for identify requests.
func (a *Accessory) OnIdentify(h IdentifyHandler) {
	a.mu.Lock()
	a.onIdentify = h
	a.mu.Unlock()
}

// RequestWrite validates a client write and forwards it to the write handler.
// It does not change the stored value: the value is updated by the next
// refresh that observes the device's actual state.
func (a *Accessory) RequestWrite(ctx context.Context, id string, raw any) error {
	c, ok := a.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCharacteristic, id)
	}
	if !c.Writable() {
		return fmt.Errorf("%w: %s", ErrReadOnly, id)
	}

	value, err := c.def.Coerce(raw)
	if err != nil {
		return err
	}

	if id == IDIdentify {
		a.Identify()
		return nil
	}

	a.mu.RLock()
	h := a.onWrite
	a.mu.RUnlock()
	if h == nil {
		return ErrNoWriteHandler
	}
	h(ctx, id, value)
	return nil
}

// Identify forwards an identify request to the handler, if any.
func (a *Accessory) Identify() {
	a.mu.RLock()
	h := a.onIdentify
	a.mu.RUnlock()
	if h != nil {
		h(a.info.Name)
	}
}

// set stores v and notifies listeners if the value changed.
func (a *Accessory) set(id string, v any) {
	c, ok := a.byID[id]
	if !ok {
		return
	}
	old, changed := c.swap(v)
	if !changed {
		return
	}

	a.mu.RLock()
	listeners := make([]Listener, 0, len(a.listeners))
	for _, l := range a.listeners {
		listeners = append(listeners, l)
	}
	a.mu.RUnlock()

	if len(listeners) == 0 {
		return
	}
	change := Change{
		ServiceID:        c.service.ID,
		CharacteristicID: id,
		Old:              old,
		New:              v,
		At:               a.now().UTC(),
	}
	for _, l := range listeners {
		l(change)
	}
}
