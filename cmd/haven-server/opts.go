package main

import (
	"strings"
)

var opts struct {
	Node struct {
		Name  string `long:"name" env:"NAME" required:"true" description:"unique node name"`
		Group string `long:"group" env:"GROUP" default:"__DEFAULT__" description:"HA group of this node"`
	} `group:"node" namespace:"node" env-namespace:"NODE"`

	Gossip struct {
		BindAddr      string `long:"bind-addr" env:"BIND_ADDR" default:"0.0.0.0" description:"address to bind the gossip listener"`
		BindPort      int    `long:"bind-port" env:"BIND_PORT" default:"7946" description:"port to bind the gossip listener"`
		AdvertiseAddr string `long:"advertise-addr" env:"ADVERTISE_ADDR" description:"address to advertise to other nodes"`
		AdvertisePort int    `long:"advertise-port" env:"ADVERTISE_PORT" description:"port to advertise to other nodes"`
	} `group:"gossip" namespace:"gossip" env-namespace:"GOSSIP"`

	Cluster struct {
		JoinAddrs  string `long:"join-addrs" env:"JOIN_ADDRS" description:"comma-separated list of nodes to join"`
		QuorumSize int    `long:"quorum-size" env:"QUORUM_SIZE" default:"1" description:"group members required before HA workloads run"`
	} `group:"cluster" namespace:"cluster" env-namespace:"CLUSTER"`

	API struct {
		BindAddr string `long:"bind-addr" env:"BIND_ADDR" default:":8080" description:"address to bind the admin API"`
	} `group:"api" namespace:"api" env-namespace:"API"`

	Verbose bool `long:"verbose" env:"VERBOSE" description:"verbose mode"`
}

func parseAddrs(s string) []string {
	var addrs []string

	for _, addr := range strings.Split(s, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			addrs = append(addrs, addr)
		}
	}

	return addrs
}
