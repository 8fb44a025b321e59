package handler

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"kbapi/internal/http/middleware"
	"kbapi/internal/model"
	"kbapi/internal/service"
)

func principal(c *fiber.Ctx) (model.Principal, error) {
	p, ok := middleware.PrincipalFromCtx(c)
	if !ok {
		return model.Principal{}, fiber.NewError(fiber.StatusUnauthorized, "missing token")
	}
	return p, nil
}

func queryInt(c *fiber.Ctx, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewValidationError(name, "must be an integer")
	}
	return n, nil
}

// UploadDocument accepts a multipart upload with metadata form fields.
func UploadDocument(docs service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		doc, err := docs.Upload(c.UserContext(), p, service.UploadInput{
			Filename:    fh.Filename,
			ContentType: ct,
			Size:        fh.Size,
			Title:       c.FormValue("title"),
			Summary:     c.FormValue("summary"),
			Tags:        c.FormValue("tags"),
			Visibility:  c.FormValue("visibility"),
			Reader:      f,
		})
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// ListDocuments pages through every document visible to the caller.
func ListDocuments(docs service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		page, err := queryInt(c, "page", 1)
		if err != nil {
			return respondServiceError(c, err)
		}
		limit, err := queryInt(c, "limit", 10)
		if err != nil {
			return respondServiceError(c, err)
		}
		res, err := docs.List(c.UserContext(), p, page, limit)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(res)
	}
}

func shelfHandler(load func(c *fiber.Ctx, p model.Principal, limit int) ([]model.DocumentView, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		limit, err := queryInt(c, "limit", 5)
		if err != nil {
			return respondServiceError(c, err)
		}
		items, err := load(c, p, limit)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": items})
	}
}

// LatestDocuments returns the newest visible documents.
func LatestDocuments(docs service.DocumentService) fiber.Handler {
	return shelfHandler(func(c *fiber.Ctx, p model.Principal, limit int) ([]model.DocumentView, error) {
		return docs.Latest(c.UserContext(), p, limit)
	})
}

// PopularDocuments returns visible documents by average rating.
func PopularDocuments(docs service.DocumentService) fiber.Handler {
	return shelfHandler(func(c *fiber.Ctx, p model.Principal, limit int) ([]model.DocumentView, error) {
		return docs.Popular(c.UserContext(), p, limit)
	})
}

// MyDocuments returns the caller's own documents.
func MyDocuments(docs service.DocumentService) fiber.Handler {
	return shelfHandler(func(c *fiber.Ctx, p model.Principal, limit int) ([]model.DocumentView, error) {
		return docs.Mine(c.UserContext(), p, limit)
	})
}

func searchInput(c *fiber.Ctx) (service.SearchInput, error) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return service.SearchInput{}, err
	}
	limit, err := queryInt(c, "limit", 10)
	if err != nil {
		return service.SearchInput{}, err
	}
	return service.SearchInput{
		Query:      c.Query("q"),
		Tags:       c.Query("tags"),
		DateFrom:   c.Query("date_from"),
		DateTo:     c.Query("date_to"),
		Group:      c.Query("group"),
		Visibility: c.Query("visibility"),
		Owner:      c.Query("owner"),
		SortBy:     c.Query("sort_by"),
		Order:      c.Query("order"),
		Page:       page,
		Limit:      limit,
	}, nil
}

// SearchDocuments runs the full filter set with sort and pagination.
func SearchDocuments(docs service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		in, err := searchInput(c)
		if err != nil {
			return respondServiceError(c, err)
		}
		res, err := docs.Search(c.UserContext(), p, in)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// CountSearchDocuments returns only the cardinality of a search predicate.
func CountSearchDocuments(docs service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		in, err := searchInput(c)
		if err != nil {
			return respondServiceError(c, err)
		}
		n, err := docs.CountSearch(c.UserContext(), p, in)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{"count": n})
	}
}

// DocumentTags returns the tag census over visible documents.
func DocumentTags(docs service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		limit, err := queryInt(c, "limit", 50)
		if err != nil {
			return respondServiceError(c, err)
		}
		tags, err := docs.TagCensus(c.UserContext(), p, limit)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": tags})
	}
}

// GetDocument returns one document by id.
func GetDocument(docs service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		view, err := docs.Get(c.UserContext(), p, c.Params("id"))
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(view)
	}
}

// UpdateDocument modifies owner-editable fields.
func UpdateDocument(docs service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		var in service.UpdateInput
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "malformed request body")
		}
		view, err := docs.Update(c.UserContext(), p, c.Params("id"), in)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(view)
	}
}

// DeleteDocument removes a document and its stored file.
func DeleteDocument(docs service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		if err := docs.Delete(c.UserContext(), p, c.Params("id")); err != nil {
			return respondServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DownloadDocument streams the stored file, or redirects to a presigned URL
// when ?presign=true.
func DownloadDocument(docs service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		id := c.Params("id")

		if c.QueryBool("presign") {
			url, err := docs.DownloadURL(c.UserContext(), p, id)
			if err != nil {
				return respondServiceError(c, err)
			}
			return c.Redirect(url, fiber.StatusTemporaryRedirect)
		}

		res, err := docs.Download(c.UserContext(), p, id)
		if err != nil {
			return respondServiceError(c, err)
		}
		defer res.Content.Close()

		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", res.Filename))
		if res.ContentType != "" {
			c.Set(fiber.HeaderContentType, res.ContentType)
		}
		return c.SendStream(res.Content, int(res.Size))
	}
}
