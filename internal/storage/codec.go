package storage

import (
	"encoding/json"
	"errors"

	"kinesis/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeSnapshot(r model.SnapshotRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeSnapshot(data []byte) (model.SnapshotRecord, error) {
	var record model.SnapshotRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.SnapshotRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.SnapshotRecord{}, err
	}
	return record, nil
}

func EncodeDiagnostics(diagnostics []model.TickDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeDiagnostics(data []byte) ([]model.TickDiagnostics, error) {
	var diagnostics []model.TickDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func EncodeMorphology(r model.MorphologyRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeMorphology(data []byte) (model.MorphologyRecord, error) {
	var record model.MorphologyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.MorphologyRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.MorphologyRecord{}, err
	}
	return record, nil
}

// Stamp returns the current version pair for newly created records.
func Stamp() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
