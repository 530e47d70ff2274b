// package content builds the device content tree and flattens it into an index of content identifiers.
//
// A content identifier is the SHA3-256 digest of an item's canonical relative path: forward slashes, no leading slash,
// cleaned, with the last extension removed. Identical canonical paths always map to the same identifier, so a library
// file and the transcoded copy uploaded for it agree on identity even though their extensions differ.
package content

import (
	"context"
	"fmt"

	"github.com/desertthunder/mtpsync/internal/device"
	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
)

// FindFolder returns the id of the first folder named name at the root of area.
//
// Matching is exact and case-sensitive. Files with the same name are ignored.
func FindFolder(ctx context.Context, lister device.Lister, area device.Area, name string) (device.ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrCancelled, err)
	}

	objects, err := lister.List(ctx, area, device.Root)
	if err != nil {
		return "", fmt.Errorf("failed to list storage root: %w", err)
	}

	for _, o := range objects {
		if o.Kind == models.KindFolder && o.Name == name {
			return o.ID, nil
		}
	}
	return "", fmt.Errorf("%w: '%s' in %s", shared.ErrFolderNotFound, name, area.Description)
}

// BuildTree walks the folder rootID depth first and returns it as a [models.TreeNode] named rootName.
func BuildTree(ctx context.Context, lister device.Lister, area device.Area, rootID device.ObjectID, rootName string) (models.TreeNode, error) {
	children, err := buildChildren(ctx, lister, area, rootID)
	if err != nil {
		return models.TreeNode{}, err
	}
	return models.NewFolder(rootName, string(rootID), children...), nil
}

func buildChildren(ctx context.Context, lister device.Lister, area device.Area, parent device.ObjectID) ([]models.TreeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCancelled, err)
	}

	objects, err := lister.List(ctx, area, parent)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("failed to list folder %s: %w", parent, err)
	}

	nodes := make([]models.TreeNode, 0, len(objects))
	for _, o := range objects {
		switch o.Kind {
		case models.KindFolder:
			children, err := buildChildren(ctx, lister, area, o.ID)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, models.NewFolder(o.Name, string(o.ID), children...))
		case models.KindFile:
			nodes = append(nodes, models.NewFile(o.Name, string(o.ID)))
		default:
			return nil, fmt.Errorf("object %s has unknown kind %v", o.ID, o.Kind)
		}
	}
	return nodes, nil
}
