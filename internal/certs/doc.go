// Package certs owns the TLS material of the secure listener.
//
// The live certificate sits behind an atomic pointer read by
// tls.Config.GetCertificate, so installing new material affects the next
// handshake only: open connections and the bound socket are left alone.
package certs
