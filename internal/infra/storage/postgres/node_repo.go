package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"nodewarden/internal/core/domain"
	"nodewarden/internal/infra/storage"
)

// NodeRepo implements storage.NodeRepository.
type NodeRepo struct {
	db *DB
}

// NewNodeRepo creates a PostgreSQL node repository.
func NewNodeRepo(db *DB) *NodeRepo {
	return &NodeRepo{db: db}
}

type nodeRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	Port         int    `db:"port"`
	URL          string `db:"url"`
	Muted        bool   `db:"muted"`
	Status       string `db:"status"`
	Condition    string `db:"condition"`
	Backend      string `db:"backend"`
	Server       string `db:"server"`
	Frontend     bool   `db:"frontend"`
	BasicAuth    string `db:"basic_auth"`
	Automation   bool   `db:"automation"`
	Dispatch     bool   `db:"dispatch"`
	DeltaHistory []byte `db:"delta_history"`

	ChainID        string `db:"chain_id"`
	ChainName      string `db:"chain_name"`
	ChainType      string `db:"chain_type"`
	Allowance      int64  `db:"allowance"`
	HasOwnEndpoint bool   `db:"has_own_endpoint"`
	UseOracles     bool   `db:"use_oracles"`
	ResponsePath   string `db:"response_path"`
	RPCRequest     string `db:"rpc_request"`
	Endpoint       string `db:"endpoint"`
	HealthyValue   string `db:"healthy_value"`

	HostID       string `db:"host_id"`
	HostName     string `db:"host_name"`
	HostIP       string `db:"host_ip"`
	HostFQDN     string `db:"host_fqdn"`
	HostLocation string `db:"host_location"`
	HostIsLB     bool   `db:"host_is_lb"`
}

const nodeSelect = `
SELECT n.id, n.name, n.port, n.url, n.muted, n.status, n.condition,
       n.backend, n.server, n.frontend, n.basic_auth, n.automation,
       n.dispatch, n.delta_history,
       c.id AS chain_id, c.name AS chain_name, c.type AS chain_type,
       c.allowance, c.has_own_endpoint, c.use_oracles, c.response_path,
       c.rpc_request, c.endpoint, c.healthy_value,
       h.id AS host_id, h.name AS host_name, h.ip AS host_ip,
       h.fqdn AS host_fqdn, h.location AS host_location,
       h.load_balancer AS host_is_lb
FROM nodes n
JOIN chains c ON c.id = n.chain_id
JOIN hosts h ON h.id = n.host_id
WHERE NOT n.deleted`

func (r nodeRow) toDomain() (domain.Node, error) {
	var deltas []int64
	if len(r.DeltaHistory) > 0 {
		if err := json.Unmarshal(r.DeltaHistory, &deltas); err != nil {
			return domain.Node{}, fmt.Errorf("decode delta history for %s: %w", r.Name, err)
		}
	}
	return domain.Node{
		ID:         r.ID,
		Name:       r.Name,
		Port:       r.Port,
		URL:        r.URL,
		Muted:      r.Muted,
		Status:     domain.HealthStatus(r.Status),
		Condition:  domain.HealthCondition(r.Condition),
		Backend:    r.Backend,
		Server:     r.Server,
		Frontend:   r.Frontend,
		BasicAuth:  r.BasicAuth,
		Automation: r.Automation,
		Dispatch:   r.Dispatch,
		Chain: domain.Chain{
			ID:             r.ChainID,
			Name:           r.ChainName,
			Type:           r.ChainType,
			Allowance:      r.Allowance,
			HasOwnEndpoint: r.HasOwnEndpoint,
			UseOracles:     r.UseOracles,
			ResponsePath:   r.ResponsePath,
			RPCRequest:     r.RPCRequest,
			Endpoint:       r.Endpoint,
			HealthyValue:   r.HealthyValue,
		},
		Host: domain.Host{
			ID:           r.HostID,
			Name:         r.HostName,
			IP:           r.HostIP,
			FQDN:         r.HostFQDN,
			Location:     r.HostLocation,
			LoadBalancer: r.HostIsLB,
		},
		DeltaHistory: deltas,
	}, nil
}

// FindMonitored returns all non-deleted nodes with chain and host joined,
// plus each node's associated load balancer hosts.
func (r *NodeRepo) FindMonitored(ctx context.Context) ([]domain.Node, error) {
	var rows []nodeRow
	if err := r.db.SelectContext(ctx, &rows, nodeSelect+" ORDER BY n.name"); err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}

	lbs, err := r.loadBalancersByNode(ctx)
	if err != nil {
		return nil, err
	}

	nodes := make([]domain.Node, 0, len(rows))
	for _, row := range rows {
		n, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		n.LoadBalancers = lbs[n.ID]
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// FindByID returns one node with chain, host and load balancers joined.
func (r *NodeRepo) FindByID(ctx context.Context, id string) (domain.Node, error) {
	var row nodeRow
	err := r.db.GetContext(ctx, &row, nodeSelect+" AND n.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Node{}, storage.ErrNodeNotFound
	}
	if err != nil {
		return domain.Node{}, fmt.Errorf("failed to query node %s: %w", id, err)
	}
	n, err := row.toDomain()
	if err != nil {
		return domain.Node{}, err
	}
	var lbs []lbRow
	err = r.db.SelectContext(ctx, &lbs, `
		SELECT nl.node_id, h.id, h.name, h.ip, h.fqdn, h.location, h.load_balancer
		FROM node_load_balancers nl
		JOIN hosts h ON h.id = nl.host_id
		WHERE nl.node_id = $1`, id)
	if err != nil {
		return domain.Node{}, fmt.Errorf("failed to query node load balancers: %w", err)
	}
	for _, lb := range lbs {
		n.LoadBalancers = append(n.LoadBalancers, domain.Host{
			ID:           lb.ID,
			Name:         lb.Name,
			IP:           lb.IP,
			FQDN:         lb.FQDN,
			Location:     lb.Location,
			LoadBalancer: lb.LoadBalancer,
		})
	}
	return n, nil
}

type lbRow struct {
	NodeID       string `db:"node_id"`
	ID           string `db:"id"`
	Name         string `db:"name"`
	IP           string `db:"ip"`
	FQDN         string `db:"fqdn"`
	Location     string `db:"location"`
	LoadBalancer bool   `db:"load_balancer"`
}

func (r *NodeRepo) loadBalancersByNode(ctx context.Context) (map[string][]domain.Host, error) {
	var rows []lbRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT nl.node_id, h.id, h.name, h.ip, h.fqdn, h.location, h.load_balancer
		FROM node_load_balancers nl
		JOIN hosts h ON h.id = nl.host_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query node load balancers: %w", err)
	}
	out := make(map[string][]domain.Host)
	for _, row := range rows {
		out[row.NodeID] = append(out[row.NodeID], domain.Host{
			ID:           row.ID,
			Name:         row.Name,
			IP:           row.IP,
			FQDN:         row.FQDN,
			Location:     row.Location,
			LoadBalancer: row.LoadBalancer,
		})
	}
	return out, nil
}

// FindPeerCandidates samples healthy same-chain peers in random order.
func (r *NodeRepo) FindPeerCandidates(ctx context.Context, chainID, excludeID string, limit int) ([]domain.Node, error) {
	var rows []nodeRow
	err := r.db.SelectContext(ctx, &rows, nodeSelect+`
		AND n.chain_id = $1 AND n.id <> $2
		AND NOT n.frontend AND n.status <> 'ERROR'
		ORDER BY random() LIMIT $3`, chainID, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query peer candidates: %w", err)
	}
	nodes := make([]domain.Node, 0, len(rows))
	for _, row := range rows {
		n, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Exists reports whether a node with the given name exists.
func (r *NodeRepo) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM nodes WHERE name = $1 AND NOT deleted)`, name)
	if err != nil {
		return false, fmt.Errorf("failed to check node existence: %w", err)
	}
	return exists, nil
}

// UpdateHealth applies the post-check write. The delta history is a bounded
// ring stored as JSONB, newest sample first.
func (r *NodeRepo) UpdateHealth(ctx context.Context, id string, upd storage.HealthUpdate) error {
	switch upd.DeltaOp {
	case storage.DeltaNone:
		res, err := r.db.ExecContext(ctx, `
			UPDATE nodes SET status = $2, condition = $3, updated_at = now()
			WHERE id = $1`, id, string(upd.Status), string(upd.Condition))
		return checkUpdated(res, err)

	case storage.DeltaClear:
		res, err := r.db.ExecContext(ctx, `
			UPDATE nodes SET status = $2, condition = $3,
			       delta_history = '[]'::jsonb, updated_at = now()
			WHERE id = $1`, id, string(upd.Status), string(upd.Condition))
		return checkUpdated(res, err)

	case storage.DeltaAppend:
		var raw []byte
		err := r.db.GetContext(ctx, &raw,
			`SELECT delta_history FROM nodes WHERE id = $1`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNodeNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read delta history: %w", err)
		}
		var deltas []int64
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &deltas); err != nil {
				return fmt.Errorf("decode delta history: %w", err)
			}
		}
		deltas = append([]int64{upd.Delta}, deltas...)
		if upd.MaxSamples > 0 && len(deltas) > upd.MaxSamples {
			deltas = deltas[:upd.MaxSamples]
		}
		encoded, err := json.Marshal(deltas)
		if err != nil {
			return fmt.Errorf("encode delta history: %w", err)
		}
		res, err := r.db.ExecContext(ctx, `
			UPDATE nodes SET status = $2, condition = $3,
			       delta_history = $4::jsonb, updated_at = now()
			WHERE id = $1`, id, string(upd.Status), string(upd.Condition), encoded)
		return checkUpdated(res, err)
	}
	return fmt.Errorf("unknown delta op %d", upd.DeltaOp)
}

// ClearHealthyDeltas resets the delta history of every HEALTHY node.
func (r *NodeRepo) ClearHealthyDeltas(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE nodes SET delta_history = '[]'::jsonb, updated_at = now()
		WHERE condition = 'HEALTHY' AND delta_history <> '[]'::jsonb`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear healthy deltas: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func checkUpdated(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("failed to update node health: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNodeNotFound
	}
	return nil
}
