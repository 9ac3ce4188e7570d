package device

import (
	"errors"
	"fmt"

	"github.com/jtjart/enocean-bridge/internal/bridges/enocean"
	"github.com/jtjart/enocean-bridge/internal/infrastructure/config"
)

// Entity is a configured device with its addressing and profiles parsed
// into domain types. Entities are immutable after construction.
type Entity struct {
	// ID is the logical device identifier used in MQTT topics.
	ID string

	// Name is a human-readable label.
	Name string

	// GatewayID names the gateway the device is reached through.
	GatewayID string

	// Platform is the entity kind: switch, light, or sensor.
	Platform string

	// Address is where the device's telegrams come from.
	Address enocean.AddressExpression

	// Profile decodes the device's telegrams.
	Profile enocean.Profile

	// Sender is the simulated sender id for commanding actuators.
	// Zero for sensors.
	Sender enocean.DeviceID

	// SenderProfile selects how commands are encoded. Empty for sensors.
	SenderProfile enocean.Profile
}

// IsActuator reports whether the entity accepts commands.
func (e Entity) IsActuator() bool {
	return e.Platform == "switch" || e.Platform == "light"
}

// BuildEntities parses every configured device into an Entity and runs
// semantic validation across the set. All failures are reported at once,
// so a bad config surfaces every problem in one pass instead of one per
// restart. The returned error matches ErrInvalidEntity, plus
// ErrUnknownGateway or ErrSenderConflict for those failure kinds.
func BuildEntities(cfg *config.Config) ([]Entity, error) {
	var errs []error
	entities := make([]Entity, 0, len(cfg.Devices))

	baseIDs := make(map[string]enocean.DeviceID, len(cfg.Gateways))
	for _, gc := range cfg.Gateways {
		base, err := enocean.ParseDeviceID(gc.BaseID)
		if err != nil {
			errs = append(errs, fmt.Errorf("gateway %q: base_id: %w", gc.ID, err))
			continue
		}
		baseIDs[gc.ID] = base
	}

	for _, dc := range cfg.Devices {
		e, buildErrs := buildEntity(dc, baseIDs)
		if len(buildErrs) > 0 {
			errs = append(errs, buildErrs...)
			continue
		}
		entities = append(entities, e)
	}

	errs = append(errs, senderConflicts(entities)...)

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEntity, errors.Join(errs...))
	}
	return entities, nil
}

// buildEntity parses a single device config, collecting every problem
// it finds rather than stopping at the first.
func buildEntity(dc config.DeviceConfig, baseIDs map[string]enocean.DeviceID) (Entity, []error) {
	var errs []error

	e := Entity{
		ID:        dc.ID,
		Name:      dc.Name,
		GatewayID: dc.Gateway,
		Platform:  dc.Platform,
	}
	if e.Name == "" {
		e.Name = dc.ID
	}

	base, gatewayKnown := baseIDs[dc.Gateway]
	if !gatewayKnown {
		errs = append(errs, fmt.Errorf("%w: device %q: gateway %q is not configured",
			ErrUnknownGateway, dc.ID, dc.Gateway))
	}

	addr, err := enocean.ParseAddressExpression(dc.Address)
	if err != nil {
		errs = append(errs, fmt.Errorf("device %q: address: %w", dc.ID, err))
	} else {
		e.Address = addr
	}

	profile, err := enocean.ParseProfile(dc.EEP)
	if err != nil {
		errs = append(errs, fmt.Errorf("device %q: eep: %w", dc.ID, err))
	} else {
		e.Profile = profile
	}

	if e.IsActuator() {
		sender, err := enocean.ParseDeviceID(dc.Sender.Address)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("device %q: sender.address: %w", dc.ID, err))
		case gatewayKnown && !sender.InRangeOf(base):
			errs = append(errs, fmt.Errorf("%w: device %q: sender %s not in range %s+127 of gateway %q",
				ErrSenderConflict, dc.ID, sender, base, dc.Gateway))
		default:
			e.Sender = sender
		}

		senderProfile, err := enocean.ParseProfile(dc.Sender.EEP)
		if err != nil {
			errs = append(errs, fmt.Errorf("device %q: sender.eep: %w", dc.ID, err))
		} else {
			e.SenderProfile = senderProfile
		}
	}

	return e, errs
}

// senderConflicts finds sender ids claimed by more than one entity on
// the same gateway. Two devices sharing a sender would teach the
// actuator to answer both, so each collision is reported.
func senderConflicts(entities []Entity) []error {
	var errs []error

	type claim struct {
		gateway string
		sender  enocean.DeviceID
	}
	claimed := make(map[claim]string)

	for _, e := range entities {
		if !e.IsActuator() {
			continue
		}
		key := claim{gateway: e.GatewayID, sender: e.Sender}
		if prev, ok := claimed[key]; ok {
			errs = append(errs, fmt.Errorf("%w: devices %q and %q both use sender %s on gateway %q",
				ErrSenderConflict, prev, e.ID, e.Sender, e.GatewayID))
			continue
		}
		claimed[key] = e.ID
	}

	return errs
}

// Bindings converts entities into the bridge's binding form.
func Bindings(entities []Entity) []enocean.EntityBinding {
	bindings := make([]enocean.EntityBinding, 0, len(entities))
	for _, e := range entities {
		bindings = append(bindings, enocean.EntityBinding{
			DeviceID:      e.ID,
			Name:          e.Name,
			GatewayID:     e.GatewayID,
			Platform:      e.Platform,
			Address:       e.Address,
			Profile:       e.Profile,
			Sender:        e.Sender,
			SenderProfile: e.SenderProfile,
		})
	}
	return bindings
}
