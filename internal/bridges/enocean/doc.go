// Package enocean implements the EnOcean radio bridge.
//
// This package provides connectivity to Eltako series 14 bus gateways
// (FAM14, FGW14-USB, FAM-USB) over serial and to LAN gateways over TCP.
// It translates between the EnOcean Serial Protocol 2 (ESP2) wire format
// and MQTT state and command messages.
//
// # Architecture
//
// The bridge operates as a translator between two buses:
//
//	┌─────────────────┐          ┌─────────────────┐
//	│   MQTT Broker   │   MQTT   │  EnOcean Bridge │   ESP2
//	│                 │◄────────►│   (this pkg)    │◄────────► Radio / RS485
//	└─────────────────┘          └─────────────────┘
//
// # Key Responsibilities
//
//   - Connect to gateways over serial (57600/9600 baud) or TCP
//   - Frame and checksum ESP2 telegrams (RPS, 1BS, 4BS)
//   - Dispatch received telegrams to registered per-device listeners
//   - Queue outgoing telegrams with a minimum inter-send delay
//   - Reconnect with exponential backoff and report state transitions
//   - Translate MQTT commands to telegrams and telegrams to MQTT state
//   - Publish health status and metrics
//
// # Addresses
//
// EnOcean devices are identified by a 4-byte id written as hex octet
// pairs (e.g. "FE-DB-0A-1B"). Dual rocker switches append a
// discriminator naming the rocker half:
//
//	addr, err := enocean.ParseAddressExpression("FE-DB-0A-1B left")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(addr.ID.String()) // "FE-DB-0A-1B"
//
// # Equipment Profiles
//
// EnOcean defines standardised payload formats (EEPs). This package
// supports the profiles used by Eltako switching and sensing hardware:
//
//   - F6-02-01 / F6-02-02: rocker switches (RPS)
//   - M5-38-08: Eltako actuator status (RPS)
//   - A5-38-08: central command switching (4BS)
//   - A5-04-02: temperature and humidity sensor (4BS)
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
//
// # References
//
//   - EnOcean Serial Protocol 2: https://www.enocean.com
//   - EnOcean Equipment Profiles: https://www.enocean-alliance.org/eep/
//   - Eltako series 14: https://www.eltako.com
package enocean
