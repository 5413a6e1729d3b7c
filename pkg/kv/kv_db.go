package kv

import (
	"errors"
	"math"
	"sync"

	"lintang/runpathx/pkg/concurrent"
	"lintang/runpathx/pkg/logger"
	"lintang/runpathx/pkg/server"

	"github.com/cockroachdb/pebble"
	"github.com/uber/h3-go/v4"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const (
	runPrefix  = "run:"
	cellPrefix = "cell:"

	cellWorkers = 4
)

// KVDB stores matched runs in pebble. Every run is also listed under the h3 cells its trace visits so
// runs can be looked up by location.
type KVDB struct {
	db  *pebble.DB
	log *zap.Logger
	// serializes read-modify-write of cell keys
	cellMu sync.Mutex
}

func NewKVDB(db *pebble.DB, log *zap.Logger) *KVDB {
	return &KVDB{db: db, log: logger.OrNop(log)}
}

// Open opens (or creates) the pebble store in dir.
func Open(dir string, log *zap.Logger) (*KVDB, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "open run store %s", dir)
	}
	return NewKVDB(db, log), nil
}

func runKey(id string) []byte {
	return []byte(runPrefix + id)
}

func cellKey(cell string) []byte {
	return []byte(cellPrefix + cell)
}

type cellJob struct {
	cell string
	add  []string
	del  []string
}

// SaveRun stores rec and updates the cell index. Saving an existing id replaces the previous record.
func (k *KVDB) SaveRun(rec RunRecord) error {
	if rec.ID == "" {
		return server.WrapErrorf(nil, server.ErrInput, "run id is empty")
	}

	old, err := k.GetRun(rec.ID)
	if err != nil && !errors.Is(err, server.ErrNotFound) {
		return err
	}

	val, err := Encode(rec)
	if err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "encode run %s", rec.ID)
	}
	if err := k.db.Set(runKey(rec.ID), val, pebble.Sync); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "save run %s", rec.ID)
	}

	jobs := make(map[string]*cellJob)
	for _, c := range old.Cells {
		jobs[c] = &cellJob{cell: c, del: []string{rec.ID}}
	}
	for _, c := range rec.Cells {
		if j, ok := jobs[c]; ok {
			j.del = nil
			j.add = []string{rec.ID}
			continue
		}
		jobs[c] = &cellJob{cell: c, add: []string{rec.ID}}
	}
	cellJobs := make([]*cellJob, 0, len(jobs))
	for _, j := range jobs {
		cellJobs = append(cellJobs, j)
	}
	if err := k.updateCells(cellJobs); err != nil {
		return err
	}

	k.log.Debug("run saved", zap.String("id", rec.ID), zap.Int("cells", len(rec.Cells)))
	return nil
}

// DeleteRun removes a run and its cell entries.
func (k *KVDB) DeleteRun(id string) error {
	rec, err := k.GetRun(id)
	if err != nil {
		return err
	}
	jobs := make([]*cellJob, 0, len(rec.Cells))
	for _, c := range rec.Cells {
		jobs = append(jobs, &cellJob{cell: c, del: []string{id}})
	}
	if err := k.updateCells(jobs); err != nil {
		return err
	}
	if err := k.db.Delete(runKey(id), pebble.Sync); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "delete run %s", id)
	}
	return nil
}

func (k *KVDB) updateCells(jobs []*cellJob) error {
	results := concurrent.Run(cellWorkers, jobs, k.updateCell)
	return errors.Join(results...)
}

func (k *KVDB) updateCell(job *cellJob) error {
	k.cellMu.Lock()
	defer k.cellMu.Unlock()

	ids, err := k.getCell(job.cell)
	if err != nil {
		return err
	}
	for _, id := range job.del {
		if i := slices.Index(ids, id); i >= 0 {
			ids = slices.Delete(ids, i, i+1)
		}
	}
	for _, id := range job.add {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	if len(ids) == 0 {
		if err := k.db.Delete(cellKey(job.cell), pebble.Sync); err != nil {
			return server.WrapErrorf(err, server.ErrInternalServerError, "delete cell %s", job.cell)
		}
		return nil
	}
	val, err := Encode(ids)
	if err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "encode cell %s", job.cell)
	}
	if err := k.db.Set(cellKey(job.cell), val, pebble.Sync); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "save cell %s", job.cell)
	}
	return nil
}

func (k *KVDB) getCell(cell string) ([]string, error) {
	val, closer, err := k.db.Get(cellKey(cell))
	if errors.Is(err, pebble.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "read cell %s", cell)
	}
	defer closer.Close()

	ids, err := Decode[[]string](val)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "decode cell %s", cell)
	}
	return ids, nil
}

func (k *KVDB) GetRun(id string) (RunRecord, error) {
	val, closer, err := k.db.Get(runKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return RunRecord{}, server.WrapErrorf(err, server.ErrNotFound, "run %s not found", id)
	}
	if err != nil {
		return RunRecord{}, server.WrapErrorf(err, server.ErrInternalServerError, "read run %s", id)
	}
	defer closer.Close()

	rec, err := Decode[RunRecord](val)
	if err != nil {
		return RunRecord{}, server.WrapErrorf(err, server.ErrInternalServerError, "decode run %s", id)
	}
	return rec, nil
}

// GetRunsNearPoint returns the runs whose trace visits an h3 cell within radiusKm of (lat, lon),
// ordered by id.
func (k *KVDB) GetRunsNearPoint(lat, lon, radiusKm float64) ([]RunRecord, error) {
	set := make(map[string]struct{})
	for _, cell := range kRingIndexesArea(lat, lon, radiusKm) {
		ids, err := k.getCell(cell.String())
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			set[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	runs := make([]RunRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := k.GetRun(id)
		if errors.Is(err, server.ErrNotFound) {
			k.log.Warn("cell index points to a missing run", zap.String("id", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, nil
}

/*
*
  - https://observablehq.com/@nrabinowitz/h3-radius-lookup?collection=@nrabinowitz/h3
    cells of the smallest disk around (lat, lon) whose area covers a circle of searchRadiusKm
*/
func kRingIndexesArea(lat, lon, searchRadiusKm float64) []h3.Cell {
	home := h3.NewLatLng(lat, lon)
	origin := h3.LatLngToCell(home, h3Resolution)
	originArea := h3.CellAreaKm2(origin)
	searchArea := math.Pi * searchRadiusKm * searchRadiusKm

	radius := 0
	diskArea := originArea

	for diskArea < searchArea {
		radius++
		cellCount := float64(3*radius*(radius+1) + 1)
		diskArea = cellCount * originArea
	}

	return h3.GridDisk(origin, radius)
}

func (k *KVDB) Close() error {
	return k.db.Close()
}
