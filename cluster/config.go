package cluster

import (
	"time"

	kitlog "github.com/go-kit/log"
)

type Config struct {
	// NodeName uniquely identifies this node in the cluster.
	NodeName string

	// BindAddr and BindPort is where the gossip listener is bound.
	BindAddr string
	BindPort int

	// AdvertiseAddr and AdvertisePort are what other nodes are told to
	// reach us at. Defaults to the bind address.
	AdvertiseAddr string
	AdvertisePort int

	// RetransmitMult scales how many times a registry broadcast is
	// retransmitted with the cluster size.
	RetransmitMult int

	// LeaveTimeout bounds the graceful leave broadcast.
	LeaveTimeout time.Duration

	Logger kitlog.Logger
}

func DefaultConfig() Config {
	return Config{
		BindAddr:       "0.0.0.0",
		BindPort:       7946,
		RetransmitMult: 3,
		LeaveTimeout:   5 * time.Second,
		Logger:         kitlog.NewNopLogger(),
	}
}
