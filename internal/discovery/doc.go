// Package discovery implements LAN peer discovery over UDP broadcast.
//
// Each device periodically broadcasts a JSON announcement describing
// itself and listens for announcements from peers on the same port.
// Learned devices live in the Directory; their online/offline status is
// derived from announcement recency, and devices silent past a grace
// period are forgotten.
package discovery
