// Package device builds the entity registry from configuration.
//
// An Entity is a configured EnOcean device with its address expression,
// equipment profile, and (for actuators) sender assignment parsed into
// domain types. BuildEntities validates the whole set eagerly and
// reports every problem in a single error, so operators fix a broken
// config in one edit instead of discovering failures one restart at a
// time.
//
// Validation covers:
//
//   - Address expressions and profiles parse
//   - Referenced gateways exist
//   - Actuators carry a sender id inside their gateway's base range
//   - No two actuators on a gateway share a sender id
//
// Bindings converts validated entities into the form the bridge wires
// onto gateways.
package device
