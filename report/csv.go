package report

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/mogaika/gltf-instancer/internal/xerrors"
)

var header = []string{
	"Input Models", "Initial Nodes", "Initial Meshes", "Initial Instances",
	"Instanced Groups", "Final Instances", "Non-instanced Meshes",
	"Final Nodes", "Final Meshes", "Total Displayed Meshes", "Node Reduction (%)",
	"Initial Instancing Ratio (%)", "Final Instancing Ratio (%)", "Instancing Increase (%)",
}

// WriteCSV writes a's single data row, preceded by the fixed header, to
// w, matching the original analyzer's column order exactly.
func WriteCSV(w io.Writer, a Analysis) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := []string{
		strconv.Itoa(a.InputModels),
		strconv.Itoa(a.InitialNodes),
		strconv.Itoa(a.InitialMeshes),
		strconv.Itoa(a.InitialInstances),
		strconv.Itoa(a.InstancedGroups),
		strconv.Itoa(a.FinalInstances),
		strconv.Itoa(a.NonInstancedMeshes),
		strconv.Itoa(a.FinalNodes),
		strconv.Itoa(a.FinalMeshes),
		strconv.Itoa(a.TotalDisplayedMeshes),
		formatPercent(a.NodeReductionPercent),
		formatPercent(a.InitialInstancingRatioPercent),
		formatPercent(a.FinalInstancingRatioPercent),
		formatPercent(a.InstancingIncreasePercent),
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// WriteFile creates path and writes a's CSV to it.
func WriteFile(path string, a Analysis) xerrors.List {
	var errs xerrors.List
	f, err := os.Create(path)
	if err != nil {
		errs.Add(xerrors.New(xerrors.Write, path, errors.Wrap(err, "creating instancing_analysis.csv")))
		return errs
	}
	defer f.Close()

	if err := WriteCSV(f, a); err != nil {
		errs.Add(xerrors.New(xerrors.Write, path, errors.Wrap(err, "writing instancing_analysis.csv")))
	}
	return errs
}
