package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSortedKeys(t *testing.T) {
	m := map[int]string{3: "c", 1: "a", 2: "b"}
	assert.Equal(t, []int{1, 2, 3}, GetSortedKeys(m, true))
	assert.Equal(t, []int{3, 2, 1}, GetSortedKeys(m, false))
	assert.Empty(t, GetSortedKeys(map[string]int{}, true))
}

func TestExecuteWithMutex(t *testing.T) {
	done := make(chan int, 8)
	for i := range 8 {
		go ExecuteWithMutex(func() { done <- i })
	}
	seen := map[int]bool{}
	for range 8 {
		seen[<-done] = true
	}
	assert.Len(t, seen, 8)
}
