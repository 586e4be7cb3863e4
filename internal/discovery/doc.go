// Package discovery advertises the accessory on the local network as a
// "_hap._tcp" mDNS service so controller apps can find it.
//
// The TXT record carries the accessory identity and its pairing status flag.
// When the pairing state changes the record is updated in place.
package discovery
