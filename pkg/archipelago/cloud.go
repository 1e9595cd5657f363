package archipelago

import "strconv"

// Cloud holds the students a player collects at the end of their action turn.
type Cloud struct {
	ID       int
	Students BoundedPool
}

func newCloud(id, capacity int) *Cloud {
	return &Cloud{ID: id, Students: BoundedPool{Capacity: capacity}}
}

func (c *Cloud) key() string {
	return strconv.Itoa(c.ID)
}

// Empty reports whether the cloud holds no students.
func (c *Cloud) Empty() bool {
	return c.Students.Students.IsEmpty()
}

// refill tops up an empty cloud from the bag. A non-empty cloud is left alone.
// The bag error is returned after the partial draw has been placed.
func (c *Cloud) refill(bag Bag, rec *recorder) error {
	if !c.Empty() {
		return nil
	}
	drawn, err := bag.Draw(c.Students.Capacity)
	c.Students.Students.Add(drawn)
	rec.emit(EntityCloud, c.key(), FieldStudents, c.Students.Students)
	return err
}

// take empties the cloud and returns its students.
func (c *Cloud) take(rec *recorder) Pool {
	out := c.Students.Students
	c.Students.Students = Pool{}
	rec.emit(EntityCloud, c.key(), FieldStudents, c.Students.Students)
	return out
}
