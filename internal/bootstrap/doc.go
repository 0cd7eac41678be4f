// Package bootstrap wires configuration into the logger, the hub connection
// URL and the connection controller. It is shared by the commands.
package bootstrap
