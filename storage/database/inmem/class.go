package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/teacher"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(_ context.Context, c class.Class) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.teachers[c.Teacher.ID]; !ok {
		return class.Class{}, teacher.ErrNotFound
	}
	c.ID = newID()
	c.Students = []string{}
	c.Roster = nil
	stored := c
	repo.db.classes[c.ID] = &stored

	created, _ := repo.db.class(c.ID, false)
	return created, nil
}

func (repo *classRepository) GetClass(_ context.Context, id string, withRoster bool) (class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.class(id, withRoster); ok {
		return c, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) all() []class.Class {
	classes := make([]class.Class, 0, len(repo.db.classes))
	for id := range repo.db.classes {
		c, _ := repo.db.class(id, false)
		classes = append(classes, c)
	}
	sort.SliceStable(classes, func(i, j int) bool {
		return classes[i].CreatedAt.Before(classes[j].CreatedAt)
	})
	return classes
}

func (repo *classRepository) QueryClasses(_ context.Context, filter class.QueryFilter) ([]class.Class, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := repo.all()
	start, end := filter.Page.Slice(len(classes))
	return classes[start:end], len(classes), nil
}

func (repo *classRepository) AllClasses(_ context.Context) ([]class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.all(), nil
}
