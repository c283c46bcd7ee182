package databricks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/lakehouse/internal/common"
)

// Connection holds the workspace URL and token of a named connection.
type Connection struct {
	Host  string
	Token string
}

// Connections resolves connection ids to clients.
type Connections struct {
	clients map[string]JobsAPI
}

// NewConnections builds one client per connection. Every connection needs
// both a host and a token.
func NewConnections(conns map[string]Connection) (*Connections, error) {
	ids := make([]string, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	clients := make(map[string]JobsAPI, len(conns))
	for _, id := range ids {
		c := conns[id]
		if strings.TrimSpace(c.Host) == "" || strings.TrimSpace(c.Token) == "" {
			return nil, fmt.Errorf("%w: connection %q needs host and token", common.ErrInvalidConfig, id)
		}
		client, err := NewClient(strings.TrimSpace(c.Host), c.Token)
		if err != nil {
			return nil, fmt.Errorf("%w: connection %q: %w", common.ErrInvalidConfig, id, err)
		}
		clients[id] = client
	}
	return &Connections{clients: clients}, nil
}

func (c *Connections) Get(id string) (JobsAPI, error) {
	client, ok := c.clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownConnection, id)
	}
	return client, nil
}
