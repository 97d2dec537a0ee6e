package commands

import (
	"net"
	"strconv"
	"time"

	"github.com/marmos91/fxd/pkg/adapter/xfer"
	"github.com/marmos91/fxd/pkg/client"
	"github.com/spf13/cobra"
)

// transferFlags are shared by get and put.
type transferFlags struct {
	address     string
	clientID    string
	dialTimeout time.Duration
}

var defaultServerAddress = net.JoinHostPort("127.0.0.1", strconv.Itoa(xfer.DefaultPort))

func (f *transferFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.address, "address", "a", defaultServerAddress, "Server address (host:port)")
	cmd.Flags().StringVar(&f.clientID, "client-id", "", "Identifier sent with HELLO (default: random)")
	cmd.Flags().DurationVar(&f.dialTimeout, "dial-timeout", client.DefaultDialTimeout, "Connection timeout")
}

func (f *transferFlags) client(onBusy client.BusyFunc) *client.Client {
	return client.New(client.Config{
		Address:     f.address,
		ClientID:    f.clientID,
		DialTimeout: f.dialTimeout,
		OnBusy:      onBusy,
	})
}
