package models

// SubjectGroup bundles subject offerings evaluated as one unit.
type SubjectGroup struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Code         string `db:"code" json:"code"`
	DisplayOrder int    `db:"display_order" json:"display_order"`
	Active       bool   `db:"active" json:"active"`
}

// GroupMembership links a subject offering to a group.
type GroupMembership struct {
	SubjectOfferingID string `db:"subject_offering_id" json:"subject_offering_id"`
	GroupID           string `db:"group_id" json:"group_id"`
	Active            bool   `db:"active" json:"active"`
}

// SubjectOffering is a subject as taught in a course and cycle.
type SubjectOffering struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Code       string `db:"code" json:"code"`
	CourseID   string `db:"course_id" json:"course_id"`
	CourseName string `db:"course_name" json:"course_name"`
}

// Course identifies a student's current course for display.
type Course struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Year    int    `db:"year" json:"year"`
	CycleID string `db:"cycle_id" json:"cycle_id"`
}

// CourseStudent is a roster row for an enrolled student.
type CourseStudent struct {
	ID         string `db:"id" json:"id"`
	FirstName  string `db:"first_name" json:"first_name"`
	LastName   string `db:"last_name" json:"last_name"`
	DocumentID string `db:"document_id" json:"document_id"`
}
