package container

import (
	"kleinimg/internal/common"
	"kleinimg/internal/compression"
	compressionDomain "kleinimg/internal/domain/compression"
	preferencesDomain "kleinimg/internal/domain/preferences"
	statisticsDomain "kleinimg/internal/domain/statistics"
	"kleinimg/internal/metadata"
	"kleinimg/internal/models"
	"kleinimg/internal/services"
	"kleinimg/internal/session"
)

// PreferencesRepositoryAdapter adapts services.PreferencesService to preferencesDomain.Repository
type PreferencesRepositoryAdapter struct {
	service *services.PreferencesService
}

func (a *PreferencesRepositoryAdapter) GetPreferences() (*preferencesDomain.UserPreferencesData, error) {
	prefs, err := a.service.GetPreferences()
	if err != nil {
		return nil, err
	}

	return &preferencesDomain.UserPreferencesData{
		Quality:     prefs.Quality,
		ResizeToFit: prefs.ResizeToFit,
		ConvertPNGs: prefs.ConvertPNGs,
	}, nil
}

func (a *PreferencesRepositoryAdapter) UpdatePreferences(data map[string]any) error {
	return a.service.UpdatePreferences(data)
}

// StatisticsServiceAdapter adapts services.StatsService to statisticsDomain.Service
type StatisticsServiceAdapter struct {
	service *services.StatsService
}

func (a *StatisticsServiceAdapter) GetStats() (*statisticsDomain.AppStats, error) {
	lifetime, err := a.service.Lifetime()
	if err != nil {
		return nil, err
	}
	current := a.service.Session()

	return &statisticsDomain.AppStats{
		TotalImagesCompressed:   lifetime.Images,
		TotalDataSaved:          lifetime.Saved,
		TotalDataSavedLabel:     common.FormatSize(lifetime.Saved),
		SessionImagesCompressed: current.Images,
		SessionDataSaved:        current.Saved,
		SessionDataSavedLabel:   common.FormatSize(current.Saved),
	}, nil
}

func (a *StatisticsServiceAdapter) History(limit int) ([]statisticsDomain.Record, error) {
	records, err := a.service.History(limit)
	if err != nil {
		return nil, err
	}

	out := make([]statisticsDomain.Record, len(records))
	for i, r := range records {
		out[i] = statisticsDomain.Record{
			CycleID:        r.CycleID,
			ImageHash:      r.ImageHash,
			NodeID:         r.NodeID,
			OriginalSize:   r.OriginalSize,
			CompressedSize: r.CompressedSize,
			CreatedAt:      r.CreatedAt,
		}
	}
	return out, nil
}

func (a *StatisticsServiceAdapter) OnUpdate(fn func()) {
	a.service.OnUpdate(fn)
}

func toDomainOptions(o compression.Options) compressionDomain.Options {
	return compressionDomain.Options{
		Quality:      o.Quality,
		QualityLabel: common.QualityLabel(o.Quality),
		ResizeToFit:  o.ResizeToFit,
		ConvertPNGs:  o.ConvertPNGs,
	}
}

func preferencesData(o compression.Options) models.UserPreferencesData {
	return models.UserPreferencesData{
		Quality:     o.Quality,
		ResizeToFit: o.ResizeToFit,
		ConvertPNGs: o.ConvertPNGs,
	}
}

func newView(path string, snap session.Snapshot) compressionDomain.View {
	t := snap.Totals
	view := compressionDomain.View{
		DocumentPath:      path,
		CycleID:           snap.CycleID,
		SelectionCount:    snap.SelectionCount,
		Scanning:          snap.Scanning,
		Compressing:       snap.Compressing,
		Status:            snap.Status,
		Progress:          snap.Progress,
		SavedPercent:      snap.SavedPercent,
		AllChecked:        snap.AllChecked,
		NumChecked:        t.NumChecked,
		NumCompressed:     t.NumCompressed,
		TotalSize:         common.FormatSize(t.TotalSize),
		TotalSizeSelected: common.FormatSize(t.TotalSizeSelected),
		TotalSizeSaved:    common.FormatSize(t.TotalSizeSaved),
		Rows:              make([]compressionDomain.RowView, len(snap.Rows)),
		Options:           toDomainOptions(snap.Options),
	}
	for i, r := range snap.Rows {
		view.Rows[i] = newRowView(i, r)
	}
	return view
}

func newRowView(index int, r metadata.Row) compressionDomain.RowView {
	v := compressionDomain.RowView{
		Index:      index,
		ImageHash:  r.ImageHash,
		NodeID:     r.NodeID,
		Width:      r.Width,
		Height:     r.Height,
		Size:       common.FormatSize(r.Size),
		Included:   r.Included,
		Compressed: r.Compressed(),
		Error:      r.Error,
	}
	if r.CompressedSize != nil {
		v.CompressedSize = common.FormatSize(*r.CompressedSize)
	}
	return v
}
