package response

import "github.com/kulezi/cqldriver/frame"

// Result kinds, spec §4.2.
const (
	ResultVoid         frame.Int = 0x0001
	ResultRows         frame.Int = 0x0002
	ResultSetKeyspace  frame.Int = 0x0003
	ResultPrepared     frame.Int = 0x0004
	ResultSchemaChange frame.Int = 0x0005
)

// Rows metadata flags.
const (
	metadataGlobalTableSpec frame.Int = 0x0001
	metadataHasMorePages    frame.Int = 0x0002
	metadataNoMetadata      frame.Int = 0x0004
	metadataMetadataChanged frame.Int = 0x0008
)

// Void is RESULT kind 1: a successful write or DDL statement with nothing
// to return.
type Void struct{}

func (*Void) OpCode() frame.OpCode { return frame.OpResult }

// Rows is RESULT kind 2: one page of a SELECT, with the column metadata
// needed to interpret each row's cells.
type Rows struct {
	Metadata frame.ResultMetadata
	Rows     []frame.Row
}

func (*Rows) OpCode() frame.OpCode { return frame.OpResult }

func (r *Rows) HasMorePages() bool { return len(r.Metadata.PagingState()) > 0 }

// SetKeyspace is RESULT kind 3, the reply to `USE <keyspace>`.
type SetKeyspace struct {
	Keyspace string
}

func (*SetKeyspace) OpCode() frame.OpCode { return frame.OpResult }

// Prepared is RESULT kind 4: the outcome of a PREPARE request.
type Prepared struct {
	ID               []byte
	ResultMetadataID []byte
	VariablesMeta    frame.ResultMetadata
	ResultMeta       frame.ResultMetadata
	PKIndexes        []int
}

func (*Prepared) OpCode() frame.OpCode { return frame.OpResult }

// SchemaChange is RESULT kind 5: an unsolicited-shaped schema-change
// descriptor returned synchronously by a DDL statement.
type SchemaChange struct {
	ChangeType string
	Target     string
	Keyspace   string
	Name       string
	ArgTypes   []string
}

func (*SchemaChange) OpCode() frame.OpCode { return frame.OpResult }

func parseResultMetadata(b *frame.Buffer, v frame.ProtocolVersion, withPKIndexes bool) (frame.ResultMetadata, []int) {
	var m frame.ResultMetadata
	var pkIndexes []int

	flags := b.ReadInt()
	colCount := b.ReadInt()

	if withPKIndexes {
		n := b.ReadInt()
		pkIndexes = make([]int, n)
		for i := frame.Int(0); i < n; i++ {
			pkIndexes[i] = int(b.ReadShort())
		}
	}

	if flags&metadataHasMorePages != 0 {
		m.PagingStateBytes = b.ReadBytes()
	}
	if v.SupportsResultMetadataID() && flags&metadataMetadataChanged != 0 {
		m.ResultMetadataID = b.ReadBytes()
	}

	m.GlobalTableSpec = flags&metadataGlobalTableSpec != 0
	if m.GlobalTableSpec {
		m.Keyspace = b.ReadString()
		m.Table = b.ReadString()
	}

	if flags&metadataNoMetadata == 0 {
		m.Columns = make([]frame.ColumnSpec, colCount)
		for i := range m.Columns {
			if !m.GlobalTableSpec {
				m.Columns[i].Keyspace = b.ReadString()
				m.Columns[i].Table = b.ReadString()
			} else {
				m.Columns[i].Keyspace = m.Keyspace
				m.Columns[i].Table = m.Table
			}
			m.Columns[i].Name = b.ReadString()
			m.Columns[i].Type = frame.ParseOption(b)
		}
	}

	return m, pkIndexes
}

func ParseResult(b *frame.Buffer, v frame.ProtocolVersion) frame.Response {
	kind := b.ReadInt()
	switch kind {
	case ResultVoid:
		return &Void{}
	case ResultRows:
		meta, _ := parseResultMetadata(b, v, false)
		rowCount := b.ReadInt()
		rows := make([]frame.Row, rowCount)
		for i := range rows {
			row := make(frame.Row, len(meta.Columns))
			for j := range row {
				row[j] = frame.ParseValue(b, &meta.Columns[j].Type)
			}
			rows[i] = row
		}
		return &Rows{Metadata: meta, Rows: rows}
	case ResultSetKeyspace:
		return &SetKeyspace{Keyspace: b.ReadString()}
	case ResultPrepared:
		id := b.ReadShortBytes()
		var resultMetadataID []byte
		if v.SupportsResultMetadataID() {
			resultMetadataID = b.ReadShortBytes()
		}
		varMeta, pkIdx := parseResultMetadata(b, v, true)
		resMeta, _ := parseResultMetadata(b, v, false)
		return &Prepared{
			ID:               id,
			ResultMetadataID: resultMetadataID,
			VariablesMeta:    varMeta,
			ResultMeta:       resMeta,
			PKIndexes:        pkIdx,
		}
	case ResultSchemaChange:
		sc := &SchemaChange{
			ChangeType: b.ReadString(),
			Target:     b.ReadString(),
		}
		switch sc.Target {
		case "KEYSPACE":
			sc.Keyspace = b.ReadString()
		case "TABLE", "TYPE":
			sc.Keyspace = b.ReadString()
			sc.Name = b.ReadString()
		case "FUNCTION", "AGGREGATE":
			sc.Keyspace = b.ReadString()
			sc.Name = b.ReadString()
			sc.ArgTypes = b.ReadStringList()
		}
		return sc
	default:
		return nil
	}
}
