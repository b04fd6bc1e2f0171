package transmission

import (
	"context"
	"fmt"

	"github.com/five82/remora/internal/jsonvalue"
)

// Handshake describes the daemon's protocol level.
type Handshake struct {
	SessionID                  string
	RPCVersion                 int
	MinimumSupportedRPCVersion int
	ServerMinimumRPCVersion    int
	ServerVersion              string
	IsCompatible               bool
}

// Call sends method and fails with ErrRPC unless the daemon reports success.
func (c *Client) Call(ctx context.Context, method string, args jsonvalue.Value) (Response, error) {
	resp, err := c.Send(ctx, method, args)
	if err != nil {
		return Response{}, err
	}
	if !resp.IsSuccess() {
		return resp, newError(ErrRPC, method, resp.Result, nil)
	}
	return resp, nil
}

// PerformHandshake fetches the daemon's RPC version, refreshing the session
// token on the way, and rejects daemons older than MinimumRPCVersion.
func (c *Client) PerformHandshake(ctx context.Context) (Handshake, error) {
	resp, err := c.SessionGet(ctx, "rpc-version", "rpc-version-minimum", "version")
	if err != nil {
		return Handshake{}, err
	}
	args := resp.Args()

	version, ok := intField(args, "rpc-version")
	if !ok {
		return Handshake{}, newError(ErrDecodingFailed, MethodSessionGet, "missing rpc-version", nil)
	}
	handshake := Handshake{
		SessionID:                  c.SessionID(),
		RPCVersion:                 version,
		MinimumSupportedRPCVersion: MinimumRPCVersion,
		IsCompatible:               version >= MinimumRPCVersion,
	}
	if minimum, ok := intField(args, "rpc-version-minimum"); ok {
		handshake.ServerMinimumRPCVersion = minimum
	}
	if field, ok := args.Field("version"); ok {
		handshake.ServerVersion, _ = field.StringValue()
	}

	if !handshake.IsCompatible {
		return handshake, &Error{
			Kind:    ErrVersionUnsupported,
			Method:  MethodSessionGet,
			Version: version,
			Details: fmt.Sprintf("daemon speaks rpc-version %d, need at least %d", version, MinimumRPCVersion),
		}
	}
	c.setRPCVersion(version)
	c.logger.Debug("handshake complete",
		"rpc_version", version,
		"server_version", handshake.ServerVersion)
	return handshake, nil
}

func intField(args jsonvalue.Value, key string) (int, bool) {
	field, ok := args.Field(key)
	if !ok {
		return 0, false
	}
	number, ok := field.NumberValue()
	if !ok {
		return 0, false
	}
	return int(number), true
}

func fieldsArgs(fields []string) jsonvalue.Value {
	if len(fields) == 0 {
		return jsonvalue.Null()
	}
	return jsonvalue.Object(map[string]jsonvalue.Value{"fields": jsonvalue.Strings(fields)})
}

func idsArgs(ids []int) jsonvalue.Value {
	if ids == nil {
		return jsonvalue.Null()
	}
	return jsonvalue.Object(map[string]jsonvalue.Value{"ids": jsonvalue.Ints(ids)})
}

// SessionGet fetches session settings. No fields fetches all of them.
func (c *Client) SessionGet(ctx context.Context, fields ...string) (Response, error) {
	return c.Call(ctx, MethodSessionGet, fieldsArgs(fields))
}

func (c *Client) SessionSet(ctx context.Context, args jsonvalue.Value) error {
	_, err := c.Call(ctx, MethodSessionSet, args)
	return err
}

func (c *Client) SessionStats(ctx context.Context) (Response, error) {
	return c.Call(ctx, MethodSessionStats, jsonvalue.Null())
}

// TorrentGet fetches fields for ids. Nil ids selects every torrent.
func (c *Client) TorrentGet(ctx context.Context, ids []int, fields []string) (Response, error) {
	args := map[string]jsonvalue.Value{"fields": jsonvalue.Strings(fields)}
	if ids != nil {
		args["ids"] = jsonvalue.Ints(ids)
	}
	return c.Call(ctx, MethodTorrentGet, jsonvalue.Object(args))
}

func (c *Client) TorrentAdd(ctx context.Context, args jsonvalue.Value) (Response, error) {
	return c.Call(ctx, MethodTorrentAdd, args)
}

// TorrentStart resumes ids. Nil ids targets every torrent.
func (c *Client) TorrentStart(ctx context.Context, ids []int) error {
	_, err := c.Call(ctx, MethodTorrentStart, idsArgs(ids))
	return err
}

func (c *Client) TorrentStop(ctx context.Context, ids []int) error {
	_, err := c.Call(ctx, MethodTorrentStop, idsArgs(ids))
	return err
}

func (c *Client) TorrentVerify(ctx context.Context, ids []int) error {
	_, err := c.Call(ctx, MethodTorrentVerify, idsArgs(ids))
	return err
}

func (c *Client) TorrentRemove(ctx context.Context, ids []int, deleteLocalData bool) error {
	args := map[string]jsonvalue.Value{
		"ids":               jsonvalue.Ints(ids),
		"delete-local-data": jsonvalue.Bool(deleteLocalData),
	}
	_, err := c.Call(ctx, MethodTorrentRemove, jsonvalue.Object(args))
	return err
}

func (c *Client) TorrentSet(ctx context.Context, args jsonvalue.Value) error {
	_, err := c.Call(ctx, MethodTorrentSet, args)
	return err
}

// FreeSpace asks the daemon how many bytes are free under path.
func (c *Client) FreeSpace(ctx context.Context, path string) (Response, error) {
	args := map[string]jsonvalue.Value{"path": jsonvalue.String(path)}
	return c.Call(ctx, MethodFreeSpace, jsonvalue.Object(args))
}
