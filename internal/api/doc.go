// Package api is the accessory's HTTP listener.
//
// Routes (all JSON). Those marked * need "Authorization: Bearer <token>"
// with the token returned by POST /pairings; ** needs an admin controller.
// POST /pairings and identify are open until the first controller pairs.
//
//	GET    /api/v1/health                          liveness, version, pairing state
//	GET    /api/v1/metrics                         runtime and controller counters
//	GET    /api/v1/accessory                       the whole service/characteristic tree
//	POST   /api/v1/identify                      * ask the accessory to identify itself
//	GET    /api/v1/characteristics                 flat list of characteristics
//	GET    /api/v1/characteristics/{id}            one characteristic
//	PUT    /api/v1/characteristics/{id}          * write {"value": ...}; 202 when accepted
//	GET    /api/v1/characteristics/{id}/history    recorded values, newest first
//	GET    /api/v1/pairings                      * paired controllers
//	POST   /api/v1/pairings                     ** pair with the setup code; returns a token
//	DELETE /api/v1/pairings/{controllerID}       * remove a controller (admin, or itself)
//	GET    /api/v1/audit                        ** client action trail (?action=&target=&source=&limit=&offset=)
//	GET    /api/v1/ws                              WebSocket push
//	GET    /metrics                                Prometheus exposition
//
// WebSocket clients send {"type":"subscribe","payload":{"channels":["characteristic.changed"]}}
// and then receive one event per characteristic value change.
package api
