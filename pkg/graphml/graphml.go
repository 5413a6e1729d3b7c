package graphml

import (
	"bufio"
	"encoding/xml"
	"os"
	"strconv"

	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/geo"
	"lintang/runpathx/pkg/geometry"
	"lintang/runpathx/pkg/server"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

const namespace = "http://graphml.graphdrawing.org/xmlns"

// attribute names written by osmnx
const (
	attrY        = "y"
	attrX        = "x"
	attrLength   = "length"
	attrGeometry = "geometry"
	attrName     = "name"
	attrHighway  = "highway"
)

type xmlGraphML struct {
	XMLName xml.Name `xml:"graphml"`
	Xmlns   string   `xml:"xmlns,attr,omitempty"`
	Keys    []xmlKey `xml:"key"`
	Graph   xmlGraph `xml:"graph"`
}

type xmlKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr,omitempty"`
}

type xmlGraph struct {
	EdgeDefault string    `xml:"edgedefault,attr,omitempty"`
	Nodes       []xmlNode `xml:"node"`
	Edges       []xmlEdge `xml:"edge"`
}

type xmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type xmlNode struct {
	ID   string    `xml:"id,attr"`
	Data []xmlData `xml:"data"`
}

type xmlEdge struct {
	Source string    `xml:"source,attr"`
	Target string    `xml:"target,attr"`
	ID     string    `xml:"id,attr,omitempty"`
	Data   []xmlData `xml:"data"`
}

// keyNames maps key ids to attribute names for one element kind.
func keyNames(keys []xmlKey, kind string) map[string]string {
	names := make(map[string]string)
	for _, k := range keys {
		if k.For == kind || k.For == "all" {
			names[k.ID] = k.AttrName
		}
	}
	return names
}

func attributes(data []xmlData, names map[string]string) map[string]string {
	attrs := make(map[string]string, len(data))
	for _, d := range data {
		name, ok := names[d.Key]
		if !ok {
			name = d.Key
		}
		attrs[name] = d.Value
	}
	return attrs
}

// Load reads an osmnx style GraphML file. Edge geometries that are not valid WKT are kept as an empty
// collection so later stages treat them as unusable instead of failing the whole load.
func Load(path string) (*datastructure.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrGraphLoad, "open graph %s", path)
	}
	defer f.Close()

	var doc xmlGraphML
	if err := xml.NewDecoder(bufio.NewReader(f)).Decode(&doc); err != nil {
		return nil, server.WrapErrorf(err, server.ErrGraphLoad, "decode graph %s", path)
	}

	nodeKeys := keyNames(doc.Keys, "node")
	edgeKeys := keyNames(doc.Keys, "edge")

	g := datastructure.NewGraph()
	for _, n := range doc.Graph.Nodes {
		id, err := strconv.ParseInt(n.ID, 10, 64)
		if err != nil {
			return nil, server.WrapErrorf(err, server.ErrGraphLoad, "node id %q", n.ID)
		}
		attrs := attributes(n.Data, nodeKeys)
		lat, errLat := strconv.ParseFloat(attrs[attrY], 64)
		lon, errLon := strconv.ParseFloat(attrs[attrX], 64)
		if errLat != nil || errLon != nil {
			return nil, server.WrapErrorf(nil, server.ErrGraphLoad, "node %d has no valid x/y", id)
		}
		g.AddNode(id, lat, lon)
	}

	for _, e := range doc.Graph.Edges {
		from, errFrom := strconv.ParseInt(e.Source, 10, 64)
		to, errTo := strconv.ParseInt(e.Target, 10, 64)
		if errFrom != nil || errTo != nil {
			return nil, server.WrapErrorf(nil, server.ErrGraphLoad, "edge %q->%q has invalid endpoints", e.Source, e.Target)
		}
		attrs := attributes(e.Data, edgeKeys)

		edge := datastructure.Edge{
			From:    from,
			To:      to,
			Name:    attrs[attrName],
			Highway: attrs[attrHighway],
		}
		if raw, ok := attrs[attrGeometry]; ok && raw != "" {
			geom, err := wkt.Unmarshal(raw)
			if err != nil || geometry.IsEmpty(geom) {
				geom = orb.Collection{}
			}
			edge.Geometry = geom
		}

		length, err := strconv.ParseFloat(attrs[attrLength], 64)
		if err != nil {
			u, okU := g.GetNode(from)
			v, okV := g.GetNode(to)
			if okU && okV {
				length = geo.CalculateHaversineDistance(u.Lat, u.Lon, v.Lat, v.Lon)
			}
		}
		edge.Length = length

		if _, err := g.AddEdge(edge); err != nil {
			return nil, server.WrapErrorf(err, server.ErrGraphLoad, "graph %s", path)
		}
	}
	return g, nil
}

// Save writes g as GraphML readable by Load and by osmnx.
func Save(g *datastructure.Graph, path string) (err error) {
	doc := xmlGraphML{
		Xmlns: namespace,
		Keys: []xmlKey{
			{ID: "d0", For: "node", AttrName: attrY, AttrType: "string"},
			{ID: "d1", For: "node", AttrName: attrX, AttrType: "string"},
			{ID: "d2", For: "edge", AttrName: attrLength, AttrType: "string"},
			{ID: "d3", For: "edge", AttrName: attrGeometry, AttrType: "string"},
			{ID: "d4", For: "edge", AttrName: attrName, AttrType: "string"},
			{ID: "d5", For: "edge", AttrName: attrHighway, AttrType: "string"},
		},
		Graph: xmlGraph{EdgeDefault: "directed"},
	}

	for _, id := range g.NodeIDs() {
		n, _ := g.GetNode(id)
		doc.Graph.Nodes = append(doc.Graph.Nodes, xmlNode{
			ID: strconv.FormatInt(id, 10),
			Data: []xmlData{
				{Key: "d0", Value: formatFloat(n.Lat)},
				{Key: "d1", Value: formatFloat(n.Lon)},
			},
		})
	}

	for _, e := range g.Edges() {
		data := []xmlData{{Key: "d2", Value: formatFloat(e.Length)}}
		if e.Geometry != nil {
			data = append(data, xmlData{Key: "d3", Value: wkt.MarshalString(e.Geometry)})
		}
		if e.Name != "" {
			data = append(data, xmlData{Key: "d4", Value: e.Name})
		}
		if e.Highway != "" {
			data = append(data, xmlData{Key: "d5", Value: e.Highway})
		}
		doc.Graph.Edges = append(doc.Graph.Edges, xmlEdge{
			Source: strconv.FormatInt(e.From, 10),
			Target: strconv.FormatInt(e.To, 10),
			ID:     strconv.Itoa(e.Key),
			Data:   data,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return server.WrapErrorf(err, server.ErrGraphSave, "create graph %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = server.WrapErrorf(cerr, server.ErrGraphSave, "close graph %s", path)
		}
	}()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(xml.Header); err != nil {
		return server.WrapErrorf(err, server.ErrGraphSave, "write graph %s", path)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return server.WrapErrorf(err, server.ErrGraphSave, "encode graph %s", path)
	}
	if err := w.Flush(); err != nil {
		return server.WrapErrorf(err, server.ErrGraphSave, "flush graph %s", path)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
