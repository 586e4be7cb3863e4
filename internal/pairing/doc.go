// Package pairing manages how controllers pair with the accessory.
//
// It generates and validates setup codes (XXX-XX-XXX), builds the X-HM://
// setup URI shown to users, persists the accessory identity and the paired
// controllers in SQLite, and runs a two-state machine (unpaired, paired)
// whose transitions are broadcast to listeners such as the controller and
// the mDNS advertiser.
//
// The pairing cryptography itself is out of scope: a controller is paired by
// presenting the setup code and its public key through the API.
package pairing
