// Package discovery finds LAN-mode devices on the local network.
//
// A device whose session dropped on a network or timeout error may have
// moved to a new address. The session layer asks a Resolver for the current
// address of "<dsn>.local" and, on success, points the device at the new
// IP and restarts its keep-alive.
//
// # Host Queries
//
// HostResolver sends a single multicast DNS A query with the unicast-response
// bit set and waits for the first matching answer. It needs no long-lived
// responder and works alongside the system mDNS daemon.
//
// # Service Browsing
//
// BrowseResolver browses the LAN service type with zeroconf and matches
// entries on host name, instance name or the "dsn" TXT key. Advertiser is
// the device-side counterpart used by simulated devices.
//
// Both resolvers can be combined with Chain:
//
//	r := discovery.Chain{
//	    discovery.NewHostResolver(discovery.HostResolverConfig{}),
//	    discovery.NewBrowseResolver(discovery.BrowseResolverConfig{}),
//	}
package discovery
