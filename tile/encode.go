package tile

import (
	"fmt"

	"navforge/common/rw"
	"navforge/pipeline"
)

const (
	navMeshMagic   = uint32('N')<<24 | uint32('F')<<16 | uint32('N')<<8 | uint32('M')
	navMeshVersion = uint32(1)
)

// Encode serializes the navmesh. Tiles are written in (Y, X) order and
// every field deterministically, so encoding the same logical mesh
// always yields the same bytes.
func Encode(nm *NavMesh) ([]byte, error) {
	w := rw.NewWriter()
	w.WriteUInt32(navMeshMagic)
	w.WriteUInt32(navMeshVersion)
	for _, v := range nm.Origin {
		w.WriteFloat32(v)
	}
	w.WriteFloat32(nm.TileWidth)
	w.WriteFloat32(nm.TileHeight)

	coords := nm.Coords()
	w.WriteInt32(int32(len(coords)))
	for _, c := range coords {
		encodeTile(w, nm.tiles[c])
	}
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("tile: encode: %w", err)
	}
	return w.Bytes(), nil
}

func encodeTile(w *rw.ReaderWriter, t *Tile) {
	w.WriteInt32(int32(t.Coord.X))
	w.WriteInt32(int32(t.Coord.Y))
	for _, v := range t.BMin {
		w.WriteFloat32(v)
	}
	for _, v := range t.BMax {
		w.WriteFloat32(v)
	}
	encodeMesh(w, t.Mesh)
	encodeDetail(w, t.Detail)

	w.WriteInt32(int32(len(t.Links)))
	for _, l := range t.Links {
		w.WriteInt32(int32(l.Poly))
		w.WriteUInt8(uint8(l.Edge))
		w.WriteInt32(int32(l.Neighbor.X))
		w.WriteInt32(int32(l.Neighbor.Y))
		w.WriteInt32(int32(l.NeighborPoly))
	}
}

func encodeMesh(w *rw.ReaderWriter, m *pipeline.PolyMesh) {
	w.WriteInt32(int32(m.NVerts))
	w.WriteInt32(int32(m.NPolys))
	w.WriteInt32(int32(m.Nvp))
	for _, v := range m.BMin {
		w.WriteFloat32(v)
	}
	for _, v := range m.BMax {
		w.WriteFloat32(v)
	}
	w.WriteFloat32(m.Cs)
	w.WriteFloat32(m.Ch)
	w.WriteInt32(int32(m.BorderSize))
	w.WriteFloat32(m.MaxEdgeError)
	for i := 0; i < m.NVerts*3; i++ {
		w.WriteUInt16(uint16(m.Verts[i]))
	}
	for i := 0; i < m.NPolys*m.Nvp*2; i++ {
		w.WriteUInt16(uint16(m.Polys[i]))
	}
	for i := 0; i < m.NPolys; i++ {
		w.WriteUInt16(uint16(m.Regs[i]))
	}
	w.WriteBytes(m.Areas[:m.NPolys])
}

func encodeDetail(w *rw.ReaderWriter, d *pipeline.PolyMeshDetail) {
	if d == nil {
		w.WriteUInt8(0)
		return
	}
	w.WriteUInt8(1)
	w.WriteInt32(int32(len(d.Meshes) / 4))
	for _, v := range d.Meshes {
		w.WriteInt32(int32(v))
	}
	w.WriteInt32(int32(len(d.Verts) / 3))
	for _, v := range d.Verts {
		w.WriteFloat32(v)
	}
	w.WriteInt32(int32(len(d.Tris) / 4))
	w.WriteBytes(d.Tris)
}

// Decode rebuilds a navmesh from Encode output.
func Decode(data []byte) (*NavMesh, error) {
	r := rw.NewReader(data)
	if magic := r.ReadUInt32(); magic != navMeshMagic {
		return nil, fmt.Errorf("tile: bad magic %#x", magic)
	}
	if ver := r.ReadUInt32(); ver != navMeshVersion {
		return nil, fmt.Errorf("tile: unsupported version %d", ver)
	}

	nm := &NavMesh{tiles: map[Coord]*Tile{}}
	for i := range nm.Origin {
		nm.Origin[i] = r.ReadFloat32()
	}
	nm.TileWidth = r.ReadFloat32()
	nm.TileHeight = r.ReadFloat32()

	n := int(r.ReadInt32())
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("tile: decode: %w", err)
	}
	if n < 0 || n > r.Len() {
		return nil, fmt.Errorf("tile: decode: implausible tile count %d", n)
	}
	for i := 0; i < n; i++ {
		t, err := decodeTile(r)
		if err != nil {
			return nil, err
		}
		nm.tiles[t.Coord] = t
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("tile: decode: %w", err)
	}
	return nm, nil
}

func decodeTile(r *rw.ReaderWriter) (*Tile, error) {
	t := &Tile{}
	t.Coord.X = int(r.ReadInt32())
	t.Coord.Y = int(r.ReadInt32())
	for i := range t.BMin {
		t.BMin[i] = r.ReadFloat32()
	}
	for i := range t.BMax {
		t.BMax[i] = r.ReadFloat32()
	}

	var err error
	if t.Mesh, err = decodeMesh(r); err != nil {
		return nil, err
	}
	if t.Detail, err = decodeDetail(r); err != nil {
		return nil, err
	}

	nl := int(r.ReadInt32())
	if r.Err() != nil || nl < 0 || nl > r.Len() {
		return nil, fmt.Errorf("tile: decode: bad link count %d", nl)
	}
	if nl > 0 {
		t.Links = make([]Link, nl)
		for i := range t.Links {
			l := &t.Links[i]
			l.Poly = int(r.ReadInt32())
			l.Edge = int(r.ReadUInt8())
			l.Neighbor.X = int(r.ReadInt32())
			l.Neighbor.Y = int(r.ReadInt32())
			l.NeighborPoly = int(r.ReadInt32())
		}
	}
	return t, r.Err()
}

func decodeMesh(r *rw.ReaderWriter) (*pipeline.PolyMesh, error) {
	m := &pipeline.PolyMesh{}
	m.NVerts = int(r.ReadInt32())
	m.NPolys = int(r.ReadInt32())
	m.Nvp = int(r.ReadInt32())
	for i := range m.BMin {
		m.BMin[i] = r.ReadFloat32()
	}
	for i := range m.BMax {
		m.BMax[i] = r.ReadFloat32()
	}
	m.Cs = r.ReadFloat32()
	m.Ch = r.ReadFloat32()
	m.BorderSize = int(r.ReadInt32())
	m.MaxEdgeError = r.ReadFloat32()
	if r.Err() != nil || m.NVerts < 0 || m.NPolys < 0 || m.Nvp < 3 ||
		m.NVerts*3 > r.Len() || m.NPolys*m.Nvp > r.Len() {
		return nil, fmt.Errorf("tile: decode: implausible mesh header")
	}

	m.Verts = make([]int, m.NVerts*3)
	for i := range m.Verts {
		m.Verts[i] = int(r.ReadUInt16())
	}
	m.Polys = make([]int, m.NPolys*m.Nvp*2)
	for i := range m.Polys {
		m.Polys[i] = int(r.ReadUInt16())
	}
	m.Regs = make([]int, m.NPolys)
	for i := range m.Regs {
		m.Regs[i] = int(r.ReadUInt16())
	}
	m.Areas = r.ReadBytes(m.NPolys)
	if m.Areas == nil {
		m.Areas = []uint8{}
	}
	return m, r.Err()
}

func decodeDetail(r *rw.ReaderWriter) (*pipeline.PolyMeshDetail, error) {
	if r.ReadUInt8() == 0 {
		return nil, r.Err()
	}
	d := &pipeline.PolyMeshDetail{}
	nm := int(r.ReadInt32())
	if r.Err() != nil || nm < 0 || nm > r.Len() {
		return nil, fmt.Errorf("tile: decode: bad detail submesh count %d", nm)
	}
	d.Meshes = make([]int, nm*4)
	for i := range d.Meshes {
		d.Meshes[i] = int(r.ReadInt32())
	}
	nv := int(r.ReadInt32())
	if r.Err() != nil || nv < 0 || nv > r.Len() {
		return nil, fmt.Errorf("tile: decode: bad detail vert count %d", nv)
	}
	d.Verts = make([]float32, nv*3)
	for i := range d.Verts {
		d.Verts[i] = r.ReadFloat32()
	}
	nt := int(r.ReadInt32())
	if r.Err() != nil || nt < 0 || nt*4 > r.Len() {
		return nil, fmt.Errorf("tile: decode: bad detail tri count %d", nt)
	}
	d.Tris = r.ReadBytes(nt * 4)
	if d.Tris == nil {
		d.Tris = []uint8{}
	}
	return d, r.Err()
}
