// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package playback

// Offset returns right.Index() - left.Index().
func Offset(left, right *Position) int {
	return right.Index() - left.Index()
}

// Sync moves the cursors so that right - left == desired, and returns the
// offset that was actually reached.
//
// The right cursor is moved first. If clamping stops it short, the left
// cursor takes the remainder. If both are pinned at a boundary, the
// achieved offset is returned and the caller must adopt it as its new
// desired value.
func Sync(left, right *Position, desired int) int {
	current := Offset(left, right)
	if current != desired {
		right.Shift(desired - current)
	}

	current = Offset(left, right)
	if current != desired {
		left.Shift(-(desired - current))
	}

	current = Offset(left, right)
	if current != desired {
		return current
	}
	return desired
}

// Timeline is the range of left-cursor values that keep both cursors
// in bounds under a given offset.
type Timeline struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// TimelineFor computes the seekable range for the left cursor.
func TimelineFor(left, right *Position, offset int) Timeline {
	from := 0
	if -offset > from {
		from = -offset
	}
	to := left.Length() - 1
	if r := right.Length() - 1 - offset; r < to {
		to = r
	}
	return Timeline{From: from, To: to}
}
