package rttiscanner

import (
	"bytes"
	"testing"

	"github.com/dominikbraun/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHierarchy(t *testing.T) *Hierarchy {
	t.Helper()
	h, err := NewHierarchy([]RTTIInfo{
		{VTable: 0x1008, TypeName: ".?AVBase@@", BaseClasses: []string{".?AVBase@@"}},
		{VTable: 0x1028, TypeName: ".?AVDerived@@", BaseClasses: []string{".?AVDerived@@", ".?AVBase@@"}},
		{VTable: 0x1048, TypeName: ".?AVWidget@ui@@", BaseClasses: []string{".?AVWidget@ui@@", ".?AVDerived@@", ".?AVBase@@", ".?AVIUnknown@@"}},
		{VTable: 0x1068, TypeName: ".?AVWidget@ui@@", BaseClasses: []string{".?AVWidget@ui@@", ".?AVBase@@"}},
	})
	require.NoError(t, err)
	return h
}

func TestHierarchy(t *testing.T) {
	h := testHierarchy(t)

	classes, err := h.Classes()
	require.NoError(t, err)
	assert.Equal(t, []string{".?AVBase@@", ".?AVDerived@@", ".?AVIUnknown@@", ".?AVWidget@ui@@"}, classes)

	bases, err := h.Bases(".?AVWidget@ui@@")
	require.NoError(t, err)
	assert.Equal(t, []string{".?AVBase@@", ".?AVDerived@@", ".?AVIUnknown@@"}, bases)

	bases, err = h.Bases(".?AVBase@@")
	require.NoError(t, err)
	assert.Empty(t, bases)

	derived, err := h.Derived(".?AVBase@@")
	require.NoError(t, err)
	assert.Equal(t, []string{".?AVDerived@@", ".?AVWidget@ui@@"}, derived)

	roots, err := h.Roots()
	require.NoError(t, err)
	assert.Equal(t, []string{".?AVBase@@", ".?AVIUnknown@@"}, roots)
}

func TestHierarchyMissingClass(t *testing.T) {
	h := testHierarchy(t)

	_, err := h.Bases(".?AVMissing@@")
	assert.ErrorIs(t, err, graph.ErrVertexNotFound)

	_, err = h.Derived(".?AVMissing@@")
	assert.ErrorIs(t, err, graph.ErrVertexNotFound)
}

func TestHierarchyWriteDOT(t *testing.T) {
	h := testHierarchy(t)

	var buf bytes.Buffer
	require.NoError(t, h.WriteDOT(&buf))

	out := buf.String()
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, "ui::Widget")
	assert.Contains(t, out, "rankdir")
}

func TestHierarchyFromDump(t *testing.T) {
	infos, err := Dump(t.Context(), testRTTIImage(), rttiModuleName, nil)
	require.NoError(t, err)

	h, err := NewHierarchy(infos)
	require.NoError(t, err)

	derived, err := h.Derived(".?AVBase@@")
	require.NoError(t, err)
	assert.Equal(t, []string{".?AVDerived@@"}, derived)
}
