package conflict

import (
	"fmt"
	"sort"
)

// ResourceKey names the scope inside which intervals must not overlap.
type ResourceKey string

// TeacherDay scopes weekly slots taught by one teacher on one weekday.
func TeacherDay(teacherID string, day int) ResourceKey {
	return ResourceKey(fmt.Sprintf("teacher:%s:day:%d", teacherID, day))
}

// CourseDay scopes weekly slots of one course on one weekday.
func CourseDay(courseID string, day int) ResourceKey {
	return ResourceKey(fmt.Sprintf("course:%s:day:%d", courseID, day))
}

// Period scopes events inside one academic period.
func Period(periodID string) ResourceKey {
	return ResourceKey("period:" + periodID)
}

// AllPeriods is the global scope shared by every academic period.
func AllPeriods() ResourceKey {
	return ResourceKey("periods:all")
}

// Enrollment scopes the single active enrollment of a student in a course for a period.
func Enrollment(studentID, courseID, periodID string) ResourceKey {
	return ResourceKey(fmt.Sprintf("enrollment:%s:%s:%s", studentID, courseID, periodID))
}

// CourseSeats scopes the seat counter of one course across all its enrollments.
func CourseSeats(courseID string) ResourceKey {
	return ResourceKey("course:" + courseID + ":seats")
}

// normalize sorts and de-duplicates keys so every caller acquires them in the same order.
func normalize(keys []ResourceKey) []ResourceKey {
	seen := make(map[ResourceKey]struct{}, len(keys))
	out := make([]ResourceKey, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
