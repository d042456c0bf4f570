package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coleman/storage"
	"coleman/version"
)

// connection handles one client over its lifetime: read a JSON line,
// run the operation, write the JSON response.
type connection struct {
	id     string
	conn   net.Conn
	mgr    *storage.Manager
	logger *zap.Logger
}

func newConnection(conn net.Conn, mgr *storage.Manager, logger *zap.Logger) *connection {
	id := uuid.NewString()
	return &connection{
		id:     id,
		conn:   conn,
		mgr:    mgr,
		logger: logger.With(zap.String("conn", id), zap.String("remote", conn.RemoteAddr().String())),
	}
}

func (c *connection) handle() {
	defer c.conn.Close()
	c.logger.Debug("client connected")

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	enc := json.NewEncoder(c.conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			c.write(enc, errorResponse("bad_request", err))
			continue
		}
		c.write(enc, c.dispatch(&req))
	}
	if err := scanner.Err(); err != nil {
		c.logger.Debug("client read error", zap.Error(err))
	}
	c.logger.Debug("client disconnected")
}

func (c *connection) write(enc *json.Encoder, resp *Response) {
	if err := enc.Encode(resp); err != nil {
		c.logger.Debug("client write error", zap.Error(err))
	}
}

func (c *connection) dispatch(req *Request) *Response {
	switch req.Op {
	case "create_table":
		schema, err := decodeSchema(req.Columns)
		if err != nil {
			return errorResponse("bad_request", err)
		}
		if err := c.mgr.CreateTable(req.Table, schema); err != nil {
			return engineError(err)
		}
		return &Response{OK: true}

	case "drop_table":
		if err := c.mgr.DropTable(req.Table); err != nil {
			return engineError(err)
		}
		return &Response{OK: true}

	case "add_record":
		values, err := decodeValues(req.Values)
		if err != nil {
			return errorResponse("bad_request", err)
		}
		if err := c.mgr.AddRecord(req.Table, values); err != nil {
			return engineError(err)
		}
		return &Response{OK: true}

	case "scan":
		rows, err := c.mgr.Scan(req.Table)
		if err != nil {
			return engineError(err)
		}
		return &Response{OK: true, Rows: encodeRows(rows)}

	case "filter":
		preds, err := decodePredicates(req.Predicates)
		if err != nil {
			return errorResponse("bad_request", err)
		}
		rows, err := c.mgr.Filter(req.Table, preds)
		if err != nil {
			return engineError(err)
		}
		return &Response{OK: true, Rows: encodeRows(rows)}

	case "aggregate":
		fn, ok := storage.AggregateFuncFromString(req.Func)
		if !ok {
			return errorResponse("bad_request", fmt.Errorf("unknown aggregate function %q", req.Func))
		}
		preds, err := decodePredicates(req.Predicates)
		if err != nil {
			return errorResponse("bad_request", err)
		}
		result, err := c.mgr.Aggregate(req.Table, req.Column, fn, preds)
		if err != nil {
			return engineError(err)
		}
		spec := encodeValue(result)
		return &Response{OK: true, Value: &spec}

	case "tables":
		return &Response{OK: true, Tables: c.mgr.TableNames()}

	case "stats":
		s := c.mgr.Stats()
		return &Response{OK: true, Stats: &StatsSpec{
			TableCount:           s.TableCount,
			RecordsSinceSnapshot: s.RecordsSinceSnapshot,
			WALSize:              s.WALSize,
			WALLastSeq:           s.WALLastSeq,
			Version:              version.String(),
		}}

	case "memory":
		return &Response{OK: true, Memory: c.mgr.MemoryUsage()}

	default:
		return errorResponse("bad_request", fmt.Errorf("unknown op %q", req.Op))
	}
}

func errorResponse(code string, err error) *Response {
	return &Response{Code: code, Error: err.Error()}
}

// engineError maps a storage error to its stable wire code.
func engineError(err error) *Response {
	return &Response{Code: errorCode(err), Error: err.Error()}
}

func errorCode(err error) string {
	var (
		existsErr   *storage.TableExistsError
		notFoundErr *storage.TableNotFoundError
		colErr      *storage.ColumnNotFoundError
		countErr    *storage.ColumnCountMismatchError
		typeErr     *storage.TypeMismatchError
		predErr     *storage.InvalidPredicateError
		aggErr      *storage.AggregateTypeError
	)
	switch {
	case errors.As(err, &existsErr):
		return "table_exists"
	case errors.As(err, &notFoundErr):
		return "table_not_found"
	case errors.As(err, &colErr):
		return "column_not_found"
	case errors.As(err, &countErr):
		return "column_count_mismatch"
	case errors.As(err, &typeErr):
		return "type_mismatch"
	case errors.As(err, &predErr):
		return "invalid_predicate"
	case errors.As(err, &aggErr):
		return "invalid_column_type"
	default:
		return "internal"
	}
}
