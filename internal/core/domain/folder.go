package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateID creates a unique identifier for a new entity.
func GenerateID() string {
	return uuid.NewString()
}

const (
	// RootPath is the materialized path of an organization's root folder
	RootPath = "/"

	// MaxFolderDepth is the deepest level a folder may occupy.
	// The root sits at depth 0, its direct children at depth 1.
	MaxFolderDepth = 10

	// MaxFolderNameLength bounds folder name length in characters
	MaxFolderNameLength = 255
)

// Folder is one node in an organization's folder tree.
// Path is the materialized path from the root ("/Reports/2024") and is
// unique per organization. Depth, ParentID and Path are kept consistent
// by the hierarchy service; descendants are found by path prefix.
type Folder struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Path           string    `json:"path"`
	ParentID       *string   `json:"parent_id,omitempty"`
	Depth          int       `json:"depth"`
	IsRoot         bool      `json:"is_root"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Retrieval state. A folder with McpEnabled=false carries no config,
	// a zero embedding count, no last-indexed time and an idle status.
	McpEnabled     bool           `json:"mcp_enabled"`
	McpConfig      *McpConfig     `json:"mcp_config,omitempty"`
	IndexingStatus IndexingStatus `json:"indexing_status"`
	EmbeddingCount int            `json:"embedding_count"`
	LastIndexedAt  *time.Time     `json:"last_indexed_at,omitempty"`
}

// NormalizeFolderName validates and normalizes a folder name.
// Names are trimmed, must be non-empty, must not contain path
// separators and are bounded in length.
func NormalizeFolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidArgument
	}
	if strings.Contains(name, "/") {
		return "", ErrInvalidArgument
	}
	if len(name) > MaxFolderNameLength {
		return "", ErrInvalidArgument
	}
	return name, nil
}

// JoinPath builds a child path from a parent path and a child name.
func JoinPath(parentPath, name string) string {
	if parentPath == RootPath {
		return RootPath + name
	}
	return parentPath + "/" + name
}

// ParentPath returns the path of the folder one level up.
// The parent of a top-level folder is the root path.
func ParentPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return RootPath
	}
	return path[:idx]
}

// NewRootFolder creates the root folder row for an organization.
// Every organization has exactly one root at path "/", depth 0.
func NewRootFolder(orgID string) *Folder {
	now := time.Now()
	return &Folder{
		ID:             GenerateID(),
		OrganizationID: orgID,
		Name:           "",
		Path:           RootPath,
		ParentID:       nil,
		Depth:          0,
		IsRoot:         true,
		IndexingStatus: IndexingStatusIdle,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewFolder creates a folder as a child of parent.
// The name is normalized and the depth limit enforced here; path
// uniqueness is enforced by storage.
func NewFolder(orgID, name string, parent *Folder, createdBy string) (*Folder, error) {
	name, err := NormalizeFolderName(name)
	if err != nil {
		return nil, err
	}
	if parent.Depth+1 > MaxFolderDepth {
		return nil, ErrInvalidOperation
	}

	now := time.Now()
	parentID := parent.ID
	return &Folder{
		ID:             GenerateID(),
		OrganizationID: orgID,
		Name:           name,
		Path:           JoinPath(parent.Path, name),
		ParentID:       &parentID,
		Depth:          parent.Depth + 1,
		IsRoot:         false,
		CreatedBy:      createdBy,
		IndexingStatus: IndexingStatusIdle,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsDescendantOf reports whether f lives somewhere under ancestor.
// The check works on materialized paths, so it also covers deep
// descendants, not just direct children.
func (f *Folder) IsDescendantOf(ancestor *Folder) bool {
	if ancestor.Path == RootPath {
		return !f.IsRoot
	}
	return f.Path != ancestor.Path && strings.HasPrefix(f.Path, ancestor.Path+"/")
}

// WouldCycle reports whether moving f under target would create a cycle:
// the target is f itself or any descendant of f.
func (f *Folder) WouldCycle(target *Folder) bool {
	return target.ID == f.ID || target.IsDescendantOf(f)
}

// FolderSummary annotates a folder with live aggregate counts.
// Counts are computed per read, never stored, so they cannot drift.
type FolderSummary struct {
	*Folder
	ChildCount int `json:"child_count"`
	FileCount  int `json:"file_count"`
}

// FolderTreeNode is a folder with its children resolved, used for the
// nested tree representation.
type FolderTreeNode struct {
	*Folder
	Children []*FolderTreeNode `json:"children"`
}

// BuildFolderTree assembles a nested tree from a flat folder list.
// The returned node is the organization root; children are sorted by
// name at every level. Folders whose parent is missing from the input
// are dropped.
func BuildFolderTree(folders []*Folder) *FolderTreeNode {
	nodes := make(map[string]*FolderTreeNode, len(folders))
	var root *FolderTreeNode

	for _, f := range folders {
		node := &FolderTreeNode{Folder: f, Children: []*FolderTreeNode{}}
		nodes[f.ID] = node
		if f.IsRoot {
			root = node
		}
	}
	if root == nil {
		return nil
	}

	for _, node := range nodes {
		if node.IsRoot || node.ParentID == nil {
			continue
		}
		parent, ok := nodes[*node.ParentID]
		if !ok {
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	for _, node := range nodes {
		sort.Slice(node.Children, func(i, j int) bool {
			return node.Children[i].Name < node.Children[j].Name
		})
	}

	return root
}
