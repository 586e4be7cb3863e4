package discovery

import (
	"crypto/sha512"
	"encoding/base64"
	"strconv"
)

// Service type and domain of the advertisement.
const (
	ServiceType = "_hap._tcp"
	Domain      = "local."
)

const protocolVersion = "1.1"

// Info is what the advertisement says about the accessory.
type Info struct {
	Name         string
	DeviceID     string
	Model        string
	SetupID      string
	ConfigNumber int
	Category     uint8
	Port         int
	Paired       bool
}

// TXT returns the TXT record strings for info in key=value form.
func TXT(info Info) []string {
	sf := "1"
	if info.Paired {
		sf = "0"
	}
	return []string{
		"c#=" + strconv.Itoa(info.ConfigNumber),
		"ff=0",
		"id=" + info.DeviceID,
		"md=" + info.Model,
		"pv=" + protocolVersion,
		"s#=1",
		"sf=" + sf,
		"ci=" + strconv.Itoa(int(info.Category)),
		"sh=" + SetupHash(info.SetupID, info.DeviceID),
	}
}

// SetupHash is the base64 of the first four bytes of
// SHA-512(setupID + deviceID). Controllers match it against a scanned setup
// URI.
func SetupHash(setupID, deviceID string) string {
	sum := sha512.Sum512([]byte(setupID + deviceID))
	return base64.StdEncoding.EncodeToString(sum[:4])
}
