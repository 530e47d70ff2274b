package main

import (
	"context"

	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// DeviceInfo prints the storage areas of the configured device.
func (r *Runner) DeviceInfo(ctx context.Context, cmd *cli.Command) error {
	h, err := r.openDevice(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	areas, err := h.StorageAreas(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"name": h.Name(), "areas": areas}, true)
	}

	r.writePlainHeader(h.Name())
	for _, a := range areas {
		total := "unknown"
		if a.MaxBytes > 0 {
			total = shared.FormatBytes(int64(a.MaxBytes))
		}
		r.writePlain("%s\n", a.Description)
		r.writePlain("  Free:     %s\n", shared.FormatBytes(int64(a.FreeBytes)))
		r.writePlain("  Capacity: %s\n", total)
	}
	return nil
}

// DeviceIndex prints the tree under device.root_folder on the storage area a sync would use.
func (r *Runner) DeviceIndex(ctx context.Context, cmd *cli.Command) error {
	h, err := r.openDevice(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	ir, err := r.newEngine(nil, true, false).Index(ctx, nil, h)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(ir.Index.IDs(), true)
	}

	r.writePlain("%s (%s)\n", ir.Tree.Name, ir.Area.Description)
	r.writeTree(ir.Tree.Children, "")
	r.writePlainln("%d file(s)", ir.Tree.CountFiles())
	return nil
}

func (r *Runner) writeTree(nodes []models.TreeNode, indent string) {
	for i, n := range nodes {
		branch, next := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, next = "└── ", "    "
		}

		name := n.Name
		if n.Kind == models.KindFolder {
			name += "/"
		}
		r.writePlain("%s%s%s\n", indent, branch, name)
		if len(n.Children) > 0 {
			r.writeTree(n.Children, indent+next)
		}
	}
}
