package datastructure

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/DataDog/zstd"
	"github.com/paulmach/orb/encoding/wkt"
)

type edgeRecord struct {
	From     int64
	To       int64
	Key      int
	Geometry string // WKT, empty when the edge has no stored geometry
	Length   float64
	Name     string
	Highway  string
}

type graphRecord struct {
	Nodes []Node
	Edges []edgeRecord
}

// SaveToFile writes the graph as zstd compressed gob.
func (g *Graph) SaveToFile(path string) error {
	rec := graphRecord{
		Nodes: make([]Node, 0, len(g.nodes)),
		Edges: make([]edgeRecord, 0, g.numEdges),
	}
	for _, id := range g.NodeIDs() {
		rec.Nodes = append(rec.Nodes, *g.nodes[id])
	}
	for _, e := range g.Edges() {
		geom := ""
		if e.Geometry != nil {
			geom = wkt.MarshalString(e.Geometry)
		}
		rec.Edges = append(rec.Edges, edgeRecord{
			From:     e.From,
			To:       e.To,
			Key:      e.Key,
			Geometry: geom,
			Length:   e.Length,
			Name:     e.Name,
			Highway:  e.Highway,
		})
	}

	buf := new(bytes.Buffer)
	enc := gob.NewEncoder(buf)
	if err := enc.Encode(rec); err != nil {
		return err
	}

	compressed, err := zstd.Compress(nil, buf.Bytes())
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(compressed); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadGraph reads a graph written by SaveToFile.
func LoadGraph(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	compressed, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	data, err := zstd.Decompress(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}

	var rec graphRecord
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	g := NewGraph()
	for _, n := range rec.Nodes {
		g.AddNode(n.ID, n.Lat, n.Lon)
	}
	for _, er := range rec.Edges {
		e := Edge{
			From:    er.From,
			To:      er.To,
			Length:  er.Length,
			Name:    er.Name,
			Highway: er.Highway,
		}
		if er.Geometry != "" {
			geom, err := wkt.Unmarshal(er.Geometry)
			if err != nil {
				return nil, fmt.Errorf("edge %d->%d geometry: %w", er.From, er.To, err)
			}
			e.Geometry = geom
		}
		if _, err := g.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}
